// Package factory provides the type registries and the construction
// driver behind descriptions: each interface gets a Registry mapping type
// names to creation functions, registries are gathered in a Catalog, and
// Build populates a new instance from a parsed construction.
package factory

import (
	"github.com/NoelToby/refr/pkg/evaluator"
)

// Constructible is implemented by every type that can be built from a
// description.
type Constructible interface {
	// RegisterInitializers declares the members a description may set.
	// It is called once on every new instance.
	RegisterInitializers(in *Initializers)
	// Init runs after all members are applied and required members are
	// verified. raw is the construction's description text; env holds the
	// member bindings, including bind-only members.
	Init(raw string, env *evaluator.Env) error
}

// NoInit can be embedded by types that need no post-construction hook.
type NoInit struct{}

// Init does nothing.
func (NoInit) Init(string, *evaluator.Env) error { return nil }

// Tag names the interface a Go type T stands for in descriptions.
type Tag[T any] struct {
	name string
}

// NewTag returns the tag for interface name.
func NewTag[T any](name string) Tag[T] {
	return Tag[T]{name: name}
}

// Name returns the interface name.
func (t Tag[T]) Name() string { return t.name }

// Type returns the description type of values tagged by t.
func (t Tag[T]) Type() evaluator.Type { return evaluator.ObjectType(t.name) }
