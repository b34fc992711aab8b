package evaluator

import (
	"fmt"
	"io"

	"github.com/NoelToby/refr/pkg/diagnostics"
)

// Binding is one named value in an Env scope. Type is the declared type
// for typed declarations and the value's natural type otherwise.
type Binding struct {
	Name  string
	Value Value
	Type  Type
}

// Env is a scoped environment for variable bindings.
// It supports parent-chained lookup; bindings keep insertion order.
type Env struct {
	bindings []Binding
	index    map[string]int
	parent   *Env
	types    Types
}

// NewEnv creates a new environment with an optional parent scope.
// A child inherits its parent's view of registered types.
func NewEnv(parent *Env) *Env {
	e := &Env{index: make(map[string]int), parent: parent}
	if parent != nil {
		e.types = parent.types
	}
	return e
}

// NewGlobalEnv creates a root environment that coerces objects using types.
func NewGlobalEnv(types Types) *Env {
	e := NewEnv(nil)
	e.types = types
	return e
}

// Child creates a new child scope whose parent is this environment.
func (e *Env) Child() *Env {
	return NewEnv(e)
}

// Parent returns the enclosing scope, or nil for a root.
func (e *Env) Parent() *Env {
	return e.parent
}

// Types returns the registered-type view used for coercion, which may be nil.
func (e *Env) Types() Types {
	return e.types
}

// Define binds name in this scope with the value's natural type.
func (e *Env) Define(name string, v Value) {
	e.DefineAs(name, TypeOf(v), v)
}

// DefineAs binds name in this scope with a declared type. Redefining a
// name in the same scope replaces it in place; a parent binding of the
// same name is shadowed, never modified.
func (e *Env) DefineAs(name string, typ Type, v Value) {
	if i, ok := e.index[name]; ok {
		e.bindings[i] = Binding{Name: name, Value: v, Type: typ}
		return
	}
	e.index[name] = len(e.bindings)
	e.bindings = append(e.bindings, Binding{Name: name, Value: v, Type: typ})
}

// Get looks up a variable by name, traversing parent scopes.
func (e *Env) Get(name string) (Value, bool) {
	b, ok := e.binding(name)
	if !ok {
		return nil, false
	}
	return b.Value, true
}

// GetLocal looks up name in this scope only.
func (e *Env) GetLocal(name string) (Value, bool) {
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return e.bindings[i].Value, true
}

func (e *Env) binding(name string) (Binding, bool) {
	for s := e; s != nil; s = s.parent {
		if i, ok := s.index[name]; ok {
			return s.bindings[i], true
		}
	}
	return Binding{}, false
}

// Has checks whether a variable is defined in this scope or any parent.
func (e *Env) Has(name string) bool {
	_, ok := e.binding(name)
	return ok
}

// Lookup returns the nearest binding of name coerced to want. It fails
// with E_UNBOUND when no scope defines name and E_TYPE when the value
// does not coerce.
func (e *Env) Lookup(name string, want Type) (Value, error) {
	v, ok := e.Get(name)
	if !ok {
		return nil, diagnostics.Errorf(diagnostics.EUnbound, nil, "unbound variable '%s'", name)
	}
	c, err := Coerce(v, want, e.types)
	if err != nil {
		if de, ok := err.(*diagnostics.Error); ok {
			de.Diag.Message = fmt.Sprintf("variable '%s': %s", name, de.Diag.Message)
		}
		return nil, err
	}
	return c, nil
}

// LookupInt returns the int bound to name.
func (e *Env) LookupInt(name string) (int64, error) {
	v, err := e.Lookup(name, IntType)
	if err != nil {
		return 0, err
	}
	return v.(Int).Value, nil
}

// LookupDouble returns the double bound to name, widening ints.
func (e *Env) LookupDouble(name string) (float64, error) {
	v, err := e.Lookup(name, DoubleType)
	if err != nil {
		return 0, err
	}
	return v.(Double).Value, nil
}

// LookupBool returns the bool bound to name.
func (e *Env) LookupBool(name string) (bool, error) {
	v, err := e.Lookup(name, BoolType)
	if err != nil {
		return false, err
	}
	return v.(Bool).Value, nil
}

// LookupString returns the string bound to name.
func (e *Env) LookupString(name string) (string, error) {
	v, err := e.Lookup(name, StringType)
	if err != nil {
		return "", err
	}
	return v.(String).Value, nil
}

// Bindings returns this scope's bindings in insertion order. Parent
// scopes are not included.
func (e *Env) Bindings() []Binding {
	out := make([]Binding, len(e.bindings))
	copy(out, e.bindings)
	return out
}

// Names returns the names visible from this scope, innermost scope first.
func (e *Env) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for s := e; s != nil; s = s.parent {
		for _, b := range s.bindings {
			if !seen[b.Name] {
				seen[b.Name] = true
				names = append(names, b.Name)
			}
		}
	}
	return names
}

// Print writes this scope's bindings in insertion order, one
// "type name = value;" line each. The output is itself a description.
func (e *Env) Print(w io.Writer) error {
	for _, b := range e.bindings {
		var err error
		if b.Type.IsAny() {
			_, err = fmt.Fprintf(w, "%s = %s;\n", b.Name, Describe(b.Value))
		} else {
			_, err = fmt.Fprintf(w, "%s %s = %s;\n", b.Type, b.Name, Describe(b.Value))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
