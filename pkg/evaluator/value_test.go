package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
)

// shapeTypes knows one interface, Shape, implemented by *point.
type shapeTypes struct{}

type point struct{ x, y int64 }

func (shapeTypes) Interfaces() []string            { return []string{"Shape"} }
func (shapeTypes) HasInterface(iface string) bool { return iface == "Shape" }
func (shapeTypes) Accepts(iface string, instance any) bool {
	_, ok := instance.(*point)
	return iface == "Shape" && ok
}

func TestNewValues(t *testing.T) {
	values := []evaluator.Value{
		evaluator.NewNull(),
		evaluator.NewBool(true),
		evaluator.NewInt(42),
		evaluator.NewDouble(3.14),
		evaluator.NewString("hello"),
		evaluator.NewList(evaluator.IntType, nil),
	}

	for i, v := range values {
		if v == nil {
			t.Errorf("value %d: got nil", i)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ  evaluator.Type
		want string
	}{
		{evaluator.AnyType, "any"},
		{evaluator.BoolType, "bool"},
		{evaluator.IntType, "int"},
		{evaluator.DoubleType, "double"},
		{evaluator.StringType, "string"},
		{evaluator.ObjectType("Animal"), "Animal"},
		{evaluator.ListOf(evaluator.IntType), "int[]"},
		{evaluator.ListOf(evaluator.ObjectType("Animal")), "Animal[]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
	assert.True(t, evaluator.ListOf(evaluator.AnyType).IsAny())
	assert.False(t, evaluator.ListOf(evaluator.IntType).IsAny())
	assert.True(t, evaluator.ListOf(evaluator.IntType).Equal(evaluator.ListOf(evaluator.IntType)))
	assert.False(t, evaluator.ObjectType("A").Equal(evaluator.ObjectType("B")))
}

func TestDescribe(t *testing.T) {
	obj := evaluator.Object{Instance: &point{}, TypeName: "Point", Interface: "Shape", Raw: "Point(x(1))"}
	tests := []struct {
		v    evaluator.Value
		want string
	}{
		{evaluator.NewNull(), "nullptr"},
		{evaluator.NewBool(false), "false"},
		{evaluator.NewInt(-7), "-7"},
		{evaluator.NewDouble(2), "2.0"},
		{evaluator.NewDouble(0.25), "0.25"},
		{evaluator.NewString("a\"b"), `"a\"b"`},
		{obj, "Point(x(1))"},
		{evaluator.NewList(evaluator.IntType, []evaluator.Value{evaluator.NewInt(1), evaluator.NewInt(2)}), "{1, 2}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, evaluator.Describe(tt.v))
	}
}

func TestCoerce(t *testing.T) {
	obj := evaluator.Object{Instance: &point{}, TypeName: "Point", Interface: "Other"}
	tests := []struct {
		name string
		v    evaluator.Value
		want evaluator.Type
		out  evaluator.Value
		ok   bool
	}{
		{"int as int", evaluator.NewInt(3), evaluator.IntType, evaluator.NewInt(3), true},
		{"int widens", evaluator.NewInt(3), evaluator.DoubleType, evaluator.NewDouble(3), true},
		{"double does not narrow", evaluator.NewDouble(2.5), evaluator.IntType, nil, false},
		{"string as int", evaluator.NewString("brown"), evaluator.IntType, nil, false},
		{"bool as string", evaluator.NewBool(true), evaluator.StringType, nil, false},
		{"anything as any", evaluator.NewString("x"), evaluator.AnyType, evaluator.NewString("x"), true},
		{"null as object", evaluator.NewNull(), evaluator.ObjectType("Shape"), evaluator.NewNull(), true},
		{"null as list", evaluator.NewNull(), evaluator.ListOf(evaluator.IntType), evaluator.NewNull(), true},
		{"null as int", evaluator.NewNull(), evaluator.IntType, nil, false},
		{"object accepted", obj, evaluator.ObjectType("Shape"),
			evaluator.Object{Instance: obj.Instance, TypeName: "Point", Interface: "Shape"}, true},
		{"object rejected", obj, evaluator.ObjectType("Animal"), nil, false},
		{"object as int", obj, evaluator.IntType, nil, false},
		{"list widens", evaluator.NewList(evaluator.IntType, []evaluator.Value{evaluator.NewInt(1)}),
			evaluator.ListOf(evaluator.DoubleType),
			evaluator.NewList(evaluator.DoubleType, []evaluator.Value{evaluator.NewDouble(1)}), true},
		{"list element mismatch", evaluator.NewList(evaluator.StringType, []evaluator.Value{evaluator.NewString("a")}),
			evaluator.ListOf(evaluator.IntType), nil, false},
		{"scalar as list", evaluator.NewInt(1), evaluator.ListOf(evaluator.IntType), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluator.Coerce(tt.v, tt.want, shapeTypes{})
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, diagnostics.EType, diagnostics.Code(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.out, got)
		})
	}
}

func TestCoerceMessageNamesValueAndType(t *testing.T) {
	_, err := evaluator.Coerce(evaluator.NewString("brown"), evaluator.IntType, nil)
	require.Error(t, err)
	assert.Equal(t, `cannot use string "brown" as int`, err.Error())

	_, err = evaluator.Coerce(
		evaluator.NewList(evaluator.AnyType, []evaluator.Value{evaluator.NewInt(1), evaluator.NewString("x")}),
		evaluator.ListOf(evaluator.IntType), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element 1")
}

func TestUnify(t *testing.T) {
	ints := []evaluator.Value{evaluator.NewInt(1), evaluator.NewInt(2)}
	typ, ok := evaluator.Unify(ints)
	assert.True(t, ok)
	assert.Equal(t, evaluator.IntType, typ)

	mixed := []evaluator.Value{evaluator.NewInt(1), evaluator.NewDouble(2.5), evaluator.NewNull()}
	typ, ok = evaluator.Unify(mixed)
	assert.True(t, ok)
	assert.Equal(t, evaluator.DoubleType, typ)

	typ, ok = evaluator.Unify(nil)
	assert.True(t, ok)
	assert.Equal(t, evaluator.AnyType, typ)

	_, ok = evaluator.Unify([]evaluator.Value{evaluator.NewInt(1), evaluator.NewString("a")})
	assert.False(t, ok)
}

func TestResolveType(t *testing.T) {
	typ, err := evaluator.ResolveType(&ast.TypeRef{Name: "double"}, nil)
	require.NoError(t, err)
	assert.Equal(t, evaluator.DoubleType, typ)

	typ, err = evaluator.ResolveType(&ast.TypeRef{Name: "Shape", List: true}, shapeTypes{})
	require.NoError(t, err)
	assert.Equal(t, "Shape[]", typ.String())

	_, err = evaluator.ResolveType(&ast.TypeRef{Name: "Unicorn"}, shapeTypes{})
	require.Error(t, err)
	d, ok := diagnostics.As(err)
	require.True(t, ok)
	assert.Equal(t, diagnostics.EUnknownInterface, d.Code)
	assert.Contains(t, d.Hint, "Shape")
}

func TestValueToJSON(t *testing.T) {
	obj := evaluator.Object{Instance: &point{}, TypeName: "Point", Interface: "Shape", Raw: "Point()"}
	list := evaluator.NewList(evaluator.AnyType, []evaluator.Value{
		evaluator.NewInt(1), evaluator.NewDouble(1.5), evaluator.NewString("s"),
		evaluator.NewBool(true), evaluator.NewNull(), obj,
	})
	assert.Equal(t,
		`[1,1.5,"s",true,null,{"type":"Point","interface":"Shape","raw":"Point()"}]`,
		evaluator.ValueToJSONString(list))
}

func TestBindingsToJSONKeepsOrder(t *testing.T) {
	env := evaluator.NewEnv(nil)
	env.Define("zeta", evaluator.NewInt(1))
	env.DefineAs("alpha", evaluator.DoubleType, evaluator.NewDouble(2))
	b, err := evaluator.BindingsToJSON(env.Bindings())
	require.NoError(t, err)
	assert.Equal(t,
		`{"zeta":{"type":"int","value":1},"alpha":{"type":"double","value":2}}`,
		string(b))
}
