package factory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/NoelToby/refr/pkg/diagnostics"
)

// Factory is the type-erased view of a Registry used by the Catalog.
type Factory interface {
	// Interface returns the interface name the registry serves.
	Interface() string
	// Names returns the registered type names, sorted.
	Names() []string
	// Has reports whether name is registered.
	Has(name string) bool
	// New creates an instance of the type registered under name.
	New(name string) (Constructible, error)
	// Accepts reports whether instance implements the interface.
	Accepts(instance any) bool
}

// Registry maps type names to creation functions for one interface.
type Registry[T Constructible] struct {
	tag      Tag[T]
	mu       sync.RWMutex
	creators map[string]func() T
}

// NewRegistry creates a new empty registry for the interface tagged by tag.
func NewRegistry[T Constructible](tag Tag[T]) *Registry[T] {
	return &Registry[T]{
		tag:      tag,
		creators: make(map[string]func() T),
	}
}

// Register adds a creation function under name. A name may be
// registered once per interface.
func (r *Registry[T]) Register(name string, create func() T) error {
	if !isIdent(name) {
		return fmt.Errorf("cannot register %q as a %s type: not an identifier", name, r.tag.name)
	}
	if create == nil {
		return fmt.Errorf("cannot register %s type %s: nil creation function", r.tag.name, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.creators[name]; ok {
		return diagnostics.Errorf(diagnostics.EDupRegistration, nil,
			"%s type '%s' is already registered", r.tag.name, name)
	}
	r.creators[name] = create
	return nil
}

// Create instantiates the type registered under name.
func (r *Registry[T]) Create(name string) (T, error) {
	r.mu.RLock()
	create, ok := r.creators[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, diagnostics.Errorf(diagnostics.EUnknownType, nil,
			"unknown %s type '%s'", r.tag.name, name).
			WithHint(fmt.Sprintf("registered %s types: %s", r.tag.name, listOrNone(r.Names())))
	}
	return create(), nil
}

// Names returns the registered type names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.creators))
	for name := range r.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Interface returns the interface name.
func (r *Registry[T]) Interface() string { return r.tag.name }

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.creators[name]
	return ok
}

// New implements Factory.
func (r *Registry[T]) New(name string) (Constructible, error) {
	inst, err := r.Create(name)
	if err != nil {
		return nil, err
	}
	var c Constructible = inst
	if c == nil {
		return nil, fmt.Errorf("%s type %s: creation function returned nil", r.tag.name, name)
	}
	return c, nil
}

// Accepts implements Factory.
func (r *Registry[T]) Accepts(instance any) bool {
	_, ok := instance.(T)
	return ok
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func isIdent(s string) bool {
	switch s {
	case "", "true", "false", "nullptr":
		return false
	}
	for i, ch := range s {
		switch {
		case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case i > 0 && ch >= '0' && ch <= '9':
		default:
			return false
		}
	}
	return true
}
