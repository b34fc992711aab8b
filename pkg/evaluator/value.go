// Package evaluator implements the description evaluator: the value model,
// coercion between values and declared types, the scoped environment, and
// the type-directed walk that turns a parsed program into bindings.
package evaluator

import (
	"strconv"
	"strings"

	"github.com/NoelToby/refr/pkg/formatter"
)

// Value is the interface for all runtime values.
// The sealed marker method restricts implementations to this package.
type Value interface {
	value() // sealed marker
}

// Null is the absent value written as nullptr.
type Null struct{}

func (Null) value() {}

// Bool represents a boolean value.
type Bool struct {
	Value bool
}

func (Bool) value() {}

// Int represents an integer value.
type Int struct {
	Value int64
}

func (Int) value() {}

// Double represents a floating-point value.
type Double struct {
	Value float64
}

func (Double) value() {}

// String represents a string value.
type String struct {
	Value string
}

func (String) value() {}

// Object is a constructed instance. Interface is the interface it was
// built or coerced as; Raw is the description text it was built from.
type Object struct {
	Instance  any
	TypeName  string
	Interface string
	Raw       string
}

func (Object) value() {}

// List is an ordered collection whose items all coerce to Elem.
type List struct {
	Elem  Type
	Items []Value
}

func (List) value() {}

// NewNull creates a null value.
func NewNull() Value { return Null{} }

// NewBool creates a boolean value.
func NewBool(b bool) Value { return Bool{Value: b} }

// NewInt creates an integer value.
func NewInt(n int64) Value { return Int{Value: n} }

// NewDouble creates a floating-point value.
func NewDouble(f float64) Value { return Double{Value: f} }

// NewString creates a string value.
func NewString(s string) Value { return String{Value: s} }

// NewList creates a list value.
func NewList(elem Type, items []Value) Value { return List{Elem: elem, Items: items} }

// TypeOf reports the natural type of v.
func TypeOf(v Value) Type {
	switch val := v.(type) {
	case Bool:
		return BoolType
	case Int:
		return IntType
	case Double:
		return DoubleType
	case String:
		return StringType
	case Object:
		return ObjectType(val.Interface)
	case List:
		return ListOf(val.Elem)
	}
	return AnyType
}

// Describe renders v as description source. Objects render as the text
// they were constructed from, so the output of Describe parses back into
// an equivalent value.
func Describe(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "nullptr"
	case Bool:
		return strconv.FormatBool(val.Value)
	case Int:
		return strconv.FormatInt(val.Value, 10)
	case Double:
		return formatter.FormatFloat(val.Value)
	case String:
		return formatter.Quote(val.Value)
	case Object:
		if val.Raw != "" {
			return val.Raw
		}
		return val.TypeName + "()"
	case List:
		parts := make([]string, len(val.Items))
		for i, item := range val.Items {
			parts[i] = Describe(item)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "nullptr"
}
