package evaluator

import (
	"fmt"

	"github.com/NoelToby/refr/pkg/diagnostics"
)

// Types answers the questions coercion needs about registered interfaces.
type Types interface {
	// Interfaces lists the interface names that have a registry.
	Interfaces() []string
	// HasInterface reports whether iface has a registry.
	HasInterface(iface string) bool
	// Accepts reports whether instance implements iface.
	Accepts(iface string, instance any) bool
}

// Coerce converts v to want. Widening int to double is the only numeric
// conversion; nullptr satisfies any object or list type; objects satisfy
// an interface their instance implements; lists coerce item by item.
// Failures are E_TYPE errors without a span.
func Coerce(v Value, want Type, types Types) (Value, error) {
	if want.Kind == KindAny {
		return v, nil
	}
	switch val := v.(type) {
	case Null:
		if want.Kind == KindObject || want.Kind == KindList {
			return val, nil
		}
	case Bool:
		if want.Kind == KindBool {
			return val, nil
		}
	case Int:
		switch want.Kind {
		case KindInt:
			return val, nil
		case KindDouble:
			return Double{Value: float64(val.Value)}, nil
		}
	case Double:
		if want.Kind == KindDouble {
			return val, nil
		}
	case String:
		if want.Kind == KindString {
			return val, nil
		}
	case Object:
		if want.Kind == KindObject {
			if val.Interface == want.Interface {
				return val, nil
			}
			if types != nil && types.Accepts(want.Interface, val.Instance) {
				val.Interface = want.Interface
				return val, nil
			}
			return nil, diagnostics.Errorf(diagnostics.EType, nil,
				"cannot use %s (a %s) as %s", val.TypeName, val.Interface, want.Interface)
		}
	case List:
		if want.Kind == KindList {
			elem := want.ElemType()
			items := make([]Value, len(val.Items))
			for i, item := range val.Items {
				c, err := Coerce(item, elem, types)
				if err != nil {
					if de, ok := err.(*diagnostics.Error); ok {
						de.Diag.Message = fmt.Sprintf("element %d: %s", i, de.Diag.Message)
					}
					return nil, err
				}
				items[i] = c
			}
			return List{Elem: elem, Items: items}, nil
		}
	}
	return nil, diagnostics.Errorf(diagnostics.EType, nil,
		"cannot use %s %s as %s", kindName(v), Describe(v), want)
}

// Unify returns the narrowest type every value in vs coerces to. Nulls
// carry no type; ints widen to double when mixed with doubles. ok is
// false when two values have no common type.
func Unify(vs []Value) (t Type, ok bool) {
	seen := false
	for _, v := range vs {
		if _, isNull := v.(Null); isNull {
			continue
		}
		vt := TypeOf(v)
		if !seen {
			t, seen = vt, true
			continue
		}
		switch {
		case t.Equal(vt):
		case t.Kind == KindInt && vt.Kind == KindDouble:
			t = DoubleType
		case t.Kind == KindDouble && vt.Kind == KindInt:
		default:
			return AnyType, false
		}
	}
	return t, true
}

func kindName(v Value) string {
	switch v.(type) {
	case Null:
		return "nullptr"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Object:
		return "object"
	case List:
		return "list"
	}
	return "value"
}
