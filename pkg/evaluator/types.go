package evaluator

import (
	"fmt"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
)

// Kind classifies a Type.
type Kind int

const (
	KindAny Kind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindObject
	KindList
)

// Type is a declared or expected type: a primitive, an object of some
// interface, or a list of either. The zero Type is AnyType.
type Type struct {
	Kind      Kind
	Interface string // KindObject only
	Elem      *Type  // KindList only
}

var (
	AnyType    = Type{Kind: KindAny}
	BoolType   = Type{Kind: KindBool}
	IntType    = Type{Kind: KindInt}
	DoubleType = Type{Kind: KindDouble}
	StringType = Type{Kind: KindString}
)

var primitives = map[string]Type{
	"bool":   BoolType,
	"int":    IntType,
	"double": DoubleType,
	"string": StringType,
}

// ObjectType returns the type of objects implementing iface.
func ObjectType(iface string) Type {
	return Type{Kind: KindObject, Interface: iface}
}

// ListOf returns the type of lists whose items have type elem.
func ListOf(elem Type) Type {
	e := elem
	return Type{Kind: KindList, Elem: &e}
}

// ElemType returns the element type of a list type, or AnyType.
func (t Type) ElemType() Type {
	if t.Kind == KindList && t.Elem != nil {
		return *t.Elem
	}
	return AnyType
}

// IsAny reports whether t, or any element type within it, is unconstrained.
func (t Type) IsAny() bool {
	switch t.Kind {
	case KindAny:
		return true
	case KindList:
		return t.ElemType().IsAny()
	}
	return false
}

// Equal reports whether t and o denote the same type.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindObject:
		return t.Interface == o.Interface
	case KindList:
		return t.ElemType().Equal(o.ElemType())
	}
	return true
}

// String renders t in description syntax ("int", "Animal", "double[]").
func (t Type) String() string {
	switch t.Kind {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindObject:
		return t.Interface
	case KindList:
		return t.ElemType().String() + "[]"
	}
	return "any"
}

// ResolveType maps a type written in a description to a Type. Names that
// are not primitives must be interfaces known to types.
func ResolveType(ref *ast.TypeRef, types Types) (Type, error) {
	base, ok := primitives[ref.Name]
	if !ok {
		if types == nil || !types.HasInterface(ref.Name) {
			span := ref.Span
			err := diagnostics.Errorf(diagnostics.EUnknownInterface, &span, "unknown type '%s'", ref.Name)
			if types != nil {
				err = err.WithHint(fmt.Sprintf("declared types are bool, int, double, string, or one of: %v", types.Interfaces()))
			}
			return AnyType, err
		}
		base = ObjectType(ref.Name)
	}
	if ref.List {
		return ListOf(base), nil
	}
	return base, nil
}
