package factory

import (
	"fmt"
	"strings"

	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
)

// WriterKind says what happens to a member's value once evaluated.
type WriterKind int

const (
	// DirectWrite stores the value into a typed destination on the
	// instance, in addition to binding it in the construction scope.
	DirectWrite WriterKind = iota
	// EnvOnly only binds the value in the construction scope, where Init
	// can look it up.
	EnvOnly
)

func (k WriterKind) String() string {
	if k == EnvOnly {
		return "bind-only"
	}
	return "direct"
}

// Writer applies an evaluated member value.
type Writer struct {
	Kind  WriterKind
	write func(v evaluator.Value) error
}

// FieldSpec describes one member a description may initialize.
type FieldSpec struct {
	Name     string
	Type     evaluator.Type
	Required bool
	Writer   Writer
}

// FieldOption adjusts a FieldSpec as it is declared.
type FieldOption func(*FieldSpec)

// Required marks a member that every description must initialize.
var Required FieldOption = func(f *FieldSpec) { f.Required = true }

// Initializers collects the FieldSpecs one instance declares.
type Initializers struct {
	typeName string
	specs    []FieldSpec
	index    map[string]int
	dups     []string
}

func newInitializers(typeName string) *Initializers {
	return &Initializers{typeName: typeName, index: make(map[string]int)}
}

// Specs returns the declared members in declaration order.
func (in *Initializers) Specs() []FieldSpec {
	out := make([]FieldSpec, len(in.specs))
	copy(out, in.specs)
	return out
}

// Lookup returns the member declared under name.
func (in *Initializers) Lookup(name string) (FieldSpec, bool) {
	i, ok := in.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return in.specs[i], true
}

// Names lists the declared member names in declaration order.
func (in *Initializers) Names() []string {
	names := make([]string, len(in.specs))
	for i, s := range in.specs {
		names[i] = s.Name
	}
	return names
}

func (in *Initializers) add(spec FieldSpec, opts []FieldOption) {
	for _, opt := range opts {
		opt(&spec)
	}
	if _, ok := in.index[spec.Name]; ok {
		in.dups = append(in.dups, spec.Name)
		return
	}
	in.index[spec.Name] = len(in.specs)
	in.specs = append(in.specs, spec)
}

// err reports members declared more than once.
func (in *Initializers) err() error {
	if len(in.dups) == 0 {
		return nil
	}
	return diagnostics.Errorf(diagnostics.EDupField, nil,
		"%s declares member %s more than once", in.typeName, quoteNames(in.dups))
}

func quoteNames(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = "'" + n + "'"
	}
	return strings.Join(q, ", ")
}

// Scalar lists the Go types a primitive member can be written to.
type Scalar interface {
	bool | int | int64 | float64 | string
}

func scalarType[T Scalar]() evaluator.Type {
	var zero T
	switch any(zero).(type) {
	case bool:
		return evaluator.BoolType
	case int, int64:
		return evaluator.IntType
	case float64:
		return evaluator.DoubleType
	}
	return evaluator.StringType
}

// scalarValue converts v, already coerced to scalarType[T], to T.
func scalarValue[T Scalar](v evaluator.Value) (T, error) {
	var out T
	var ok bool
	switch p := any(&out).(type) {
	case *bool:
		var b evaluator.Bool
		b, ok = v.(evaluator.Bool)
		*p = b.Value
	case *int:
		var n evaluator.Int
		n, ok = v.(evaluator.Int)
		*p = int(n.Value)
	case *int64:
		var n evaluator.Int
		n, ok = v.(evaluator.Int)
		*p = n.Value
	case *float64:
		var d evaluator.Double
		d, ok = v.(evaluator.Double)
		*p = d.Value
	case *string:
		var s evaluator.String
		s, ok = v.(evaluator.String)
		*p = s.Value
	}
	if !ok {
		return out, fmt.Errorf("cannot write %s to %T", evaluator.Describe(v), out)
	}
	return out, nil
}

func objectValue[T any](v evaluator.Value) (T, error) {
	var zero T
	switch val := v.(type) {
	case evaluator.Null:
		return zero, nil
	case evaluator.Object:
		inst, ok := val.Instance.(T)
		if !ok {
			return zero, fmt.Errorf("%s does not implement %T", val.TypeName, &zero)
		}
		return inst, nil
	}
	return zero, fmt.Errorf("cannot write %s to an object member", evaluator.Describe(v))
}

// Add declares a primitive member written to dst.
func Add[T Scalar](in *Initializers, name string, dst *T, opts ...FieldOption) {
	in.add(FieldSpec{
		Name: name,
		Type: scalarType[T](),
		Writer: Writer{Kind: DirectWrite, write: func(v evaluator.Value) error {
			x, err := scalarValue[T](v)
			if err != nil {
				return err
			}
			*dst = x
			return nil
		}},
	}, opts)
}

// AddList declares a list-of-primitive member written to dst. nullptr
// writes a nil slice.
func AddList[T Scalar](in *Initializers, name string, dst *[]T, opts ...FieldOption) {
	in.add(FieldSpec{
		Name: name,
		Type: evaluator.ListOf(scalarType[T]()),
		Writer: Writer{Kind: DirectWrite, write: func(v evaluator.Value) error {
			list, ok := v.(evaluator.List)
			if !ok {
				*dst = nil
				return nil
			}
			out := make([]T, len(list.Items))
			for i, item := range list.Items {
				x, err := scalarValue[T](item)
				if err != nil {
					return err
				}
				out[i] = x
			}
			*dst = out
			return nil
		}},
	}, opts)
}

// AddObject declares a member holding an object of the interface tagged
// by tag. nullptr writes the zero T.
func AddObject[T any](in *Initializers, name string, dst *T, tag Tag[T], opts ...FieldOption) {
	in.add(FieldSpec{
		Name: name,
		Type: tag.Type(),
		Writer: Writer{Kind: DirectWrite, write: func(v evaluator.Value) error {
			x, err := objectValue[T](v)
			if err != nil {
				return err
			}
			*dst = x
			return nil
		}},
	}, opts)
}

// AddObjectList declares a member holding a list of objects of the
// interface tagged by tag.
func AddObjectList[T any](in *Initializers, name string, dst *[]T, tag Tag[T], opts ...FieldOption) {
	in.add(FieldSpec{
		Name: name,
		Type: evaluator.ListOf(tag.Type()),
		Writer: Writer{Kind: DirectWrite, write: func(v evaluator.Value) error {
			list, ok := v.(evaluator.List)
			if !ok {
				*dst = nil
				return nil
			}
			out := make([]T, len(list.Items))
			for i, item := range list.Items {
				x, err := objectValue[T](item)
				if err != nil {
					return err
				}
				out[i] = x
			}
			*dst = out
			return nil
		}},
	}, opts)
}

// BindOnly declares a member whose value is only bound in the
// construction scope for Init to read.
func BindOnly(in *Initializers, name string, typ evaluator.Type, opts ...FieldOption) {
	in.add(FieldSpec{
		Name:   name,
		Type:   typ,
		Writer: Writer{Kind: EnvOnly},
	}, opts)
}
