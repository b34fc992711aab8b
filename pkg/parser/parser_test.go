package parser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/parser"
)

// helper: parse source and assert no diagnostics
func mustParse(t *testing.T, source string) *ast.Program {
	t.Helper()
	prog, diags := parser.Parse(source, "test.infact")
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if prog == nil {
		t.Fatal("expected non-nil program")
	}
	return prog
}

// helper: parse source and assert diagnostics are returned
func mustFail(t *testing.T, source string) []diagnostics.Diagnostic {
	t.Helper()
	prog, diags := parser.Parse(source, "test.infact")
	if len(diags) == 0 || prog != nil {
		t.Fatalf("expected parse of %q to fail with diagnostics, but it succeeded", source)
	}
	return diags
}

// helper: extract the single statement from a program, assert it is an ExprStmt, return its Expr
func singleExpr(t *testing.T, source string) ast.Expr {
	t.Helper()
	prog := mustParse(t, source)
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	es, ok := prog.Statements[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", prog.Statements[0])
	}
	return es.Expr
}

func singleAssign(t *testing.T, source string) *ast.AssignStmt {
	t.Helper()
	prog := mustParse(t, source)
	require.Len(t, prog.Statements, 1)
	as, ok := prog.Statements[0].(*ast.AssignStmt)
	require.True(t, ok, "expected AssignStmt, got %T", prog.Statements[0])
	return as
}

// ---- 1. Literal Expressions ----

func TestIntLiteral(t *testing.T) {
	tests := []struct {
		source string
		want   int64
	}{
		{"0", 0},
		{"42", 42},
		{"-17", -17},
		{"9223372036854775807", 9223372036854775807},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			lit, ok := singleExpr(t, tt.source).(*ast.IntLiteral)
			require.True(t, ok)
			assert.Equal(t, tt.want, lit.Value)
		})
	}
}

func TestIntLiteralOutOfRange(t *testing.T) {
	diags := mustFail(t, "x = 99999999999999999999")
	assert.Equal(t, diagnostics.EParse, diags[0].Code)
	assert.Contains(t, diags[0].Message, "out of range")
}

func TestFloatLiteral(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"3.14", 3.14},
		{"-0.5", -0.5},
		{"1e3", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			lit, ok := singleExpr(t, tt.source).(*ast.FloatLiteral)
			require.True(t, ok)
			assert.Equal(t, tt.want, lit.Value)
		})
	}
}

func TestScalarLiterals(t *testing.T) {
	str, ok := singleExpr(t, `"brown"`).(*ast.StrLiteral)
	require.True(t, ok)
	assert.Equal(t, "brown", str.Value)

	b, ok := singleExpr(t, `true`).(*ast.BoolLiteral)
	require.True(t, ok)
	assert.True(t, b.Value)

	b, ok = singleExpr(t, `false`).(*ast.BoolLiteral)
	require.True(t, ok)
	assert.False(t, b.Value)

	_, ok = singleExpr(t, `nullptr`).(*ast.NullLiteral)
	assert.True(t, ok)
}

func TestVarRef(t *testing.T) {
	ref, ok := singleExpr(t, `c`).(*ast.VarRef)
	require.True(t, ok)
	assert.Equal(t, "c", ref.Name)
}

// ---- 2. Lists ----

func TestListLiteral(t *testing.T) {
	tests := []struct {
		source string
		n      int
	}{
		{"{}", 0},
		{"{1}", 1},
		{"{1, 2, 3}", 3},
		{"{1, 2, 3,}", 3},
		{`{Cow(name("a")), x}`, 2},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			list, ok := singleExpr(t, tt.source).(*ast.ListExpr)
			require.True(t, ok)
			assert.Len(t, list.Elements, tt.n)
		})
	}
}

func TestListErrors(t *testing.T) {
	for _, src := range []string{"{1 2}", "{,}", "{1,,2}"} {
		t.Run(src, func(t *testing.T) {
			mustFail(t, src)
		})
	}
}

// ---- 3. Constructions ----

func TestConstruct(t *testing.T) {
	ce, ok := singleExpr(t, `Cow(name("brown"), age(2))`).(*ast.ConstructExpr)
	require.True(t, ok)
	assert.Equal(t, "Cow", ce.TypeName)
	require.Len(t, ce.Args, 2)
	assert.Equal(t, "name", ce.Args[0].Name)
	assert.Equal(t, "brown", ce.Args[0].Value.(*ast.StrLiteral).Value)
	assert.Equal(t, "age", ce.Args[1].Name)
	assert.Equal(t, int64(2), ce.Args[1].Value.(*ast.IntLiteral).Value)
}

func TestConstructEmptyAndTrailingComma(t *testing.T) {
	ce := singleExpr(t, `Cow()`).(*ast.ConstructExpr)
	assert.Empty(t, ce.Args)

	ce = singleExpr(t, `Cow(name("brown"),)`).(*ast.ConstructExpr)
	assert.Len(t, ce.Args, 1)
}

func TestConstructNested(t *testing.T) {
	src := `Person(name("Fred"), cm_height(180), birthday(Date(year(1990), month(1), day(10))))`
	ce := singleExpr(t, src).(*ast.ConstructExpr)
	require.Len(t, ce.Args, 3)
	date, ok := ce.Args[2].Value.(*ast.ConstructExpr)
	require.True(t, ok)
	assert.Equal(t, "Date", date.TypeName)
	assert.Equal(t, "Date(year(1990), month(1), day(10))", date.Raw)
	assert.Equal(t, src, ce.Raw)
}

func TestConstructRawKeepsComments(t *testing.T) {
	src := "c = Cow(\n  name(\"x\"), // the name\n  age(3) /* years */\n);"
	as := singleAssign(t, src)
	ce := as.Value.(*ast.ConstructExpr)
	assert.Equal(t, "Cow(\n  name(\"x\"), // the name\n  age(3) /* years */\n)", ce.Raw)
}

func TestConstructSpan(t *testing.T) {
	as := singleAssign(t, "c =\n  Cow(name(\"x\"))")
	ce := as.Value.(*ast.ConstructExpr)
	assert.Equal(t, 2, ce.Span.StartLine)
	assert.Equal(t, 3, ce.Span.StartCol)
	assert.Equal(t, 2, ce.Span.EndLine)
	assert.Equal(t, 17, ce.Span.EndCol)
	assert.Equal(t, "test.infact", ce.Span.File)
}

// ---- 4. Statements ----

func TestAssignStatement(t *testing.T) {
	as := singleAssign(t, `c = Cow(name("brown"));`)
	assert.Equal(t, "c", as.Name)
	assert.Nil(t, as.Type)
	assert.Equal(t, 1, as.NameSpan.StartCol)
}

func TestTypedDeclaration(t *testing.T) {
	tests := []struct {
		source string
		typ    string
		list   bool
		name   string
	}{
		{`Animal a = Cow(name("x"));`, "Animal", false, "a"},
		{`int i = 3;`, "int", false, "i"},
		{`double d = 3`, "double", false, "d"},
		{`int[] v = {1, 2};`, "int", true, "v"},
		{`Animal[] herd = {};`, "Animal", true, "herd"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			as := singleAssign(t, tt.source)
			require.NotNil(t, as.Type)
			assert.Equal(t, tt.typ, as.Type.Name)
			assert.Equal(t, tt.list, as.Type.List)
			assert.Equal(t, tt.name, as.Name)
		})
	}
}

func TestOptionalSemicolons(t *testing.T) {
	prog := mustParse(t, "a = 1\nb = 2; c = Cow(name(\"x\"))\nCow(name(\"y\"));;")
	require.Len(t, prog.Statements, 4)
	assert.IsType(t, &ast.AssignStmt{}, prog.Statements[0])
	assert.IsType(t, &ast.AssignStmt{}, prog.Statements[1])
	assert.IsType(t, &ast.AssignStmt{}, prog.Statements[2])
	assert.IsType(t, &ast.ExprStmt{}, prog.Statements[3])
}

func TestEmptyProgram(t *testing.T) {
	for _, src := range []string{"", "   \n", "// only a comment", ";"} {
		prog := mustParse(t, src)
		assert.Empty(t, prog.Statements)
	}
}

// ---- 5. Errors ----

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		msg    string
	}{
		{"missing close paren", `Cow(name("x")`, "expected ',' or ')'"},
		{"stray comma", `Cow(,)`, "expected member name, got ','"},
		{"missing member paren", `Cow(name "x")`, "expected '(' after member name"},
		{"missing expression", `x = ;`, "expected expression, got ';'"},
		{"missing equals", `int x 3`, "expected '='"},
		{"bad list type", `int[ v = {}`, "expected ']'"},
		{"unclosed member", `Cow(name("x"`, "')' to close member name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := mustFail(t, tt.source)
			assert.Equal(t, diagnostics.EParse, diags[0].Code)
			assert.Contains(t, diags[0].Message, tt.msg)
			require.NotNil(t, diags[0].Span)
		})
	}
}

func TestErrorRecoveryReportsEachStatement(t *testing.T) {
	diags := mustFail(t, "a = Cow(,);\nb = 1;\nc = );\n")
	require.Len(t, diags, 2)
	assert.Equal(t, 1, diags[0].Span.StartLine)
	assert.Equal(t, 3, diags[1].Span.StartLine)
}

func TestLexErrorStopsParsing(t *testing.T) {
	diags := mustFail(t, "a = \"open\nb = Cow(")
	require.Len(t, diags, 1)
	assert.Equal(t, diagnostics.ELex, diags[0].Code)
}

func TestIncomplete(t *testing.T) {
	_, diags := parser.Parse(`c = Cow(name("x"),`, "repl")
	assert.True(t, parser.Incomplete(diags))

	_, diags = parser.Parse(`c = Cow(name("x")) /* still`, "repl")
	assert.True(t, parser.Incomplete(diags))

	_, diags = parser.Parse(`c = Cow(,)`, "repl")
	assert.False(t, parser.Incomplete(diags))

	assert.False(t, parser.Incomplete(nil))
}

func TestParseReader(t *testing.T) {
	src := `Person p = Person(name("Fred"), birthday(Date(year(1990), month(1), day(10))));`
	prog, diags := parser.ParseReader(strings.NewReader(src), "stdin")
	require.Empty(t, diags)
	as := prog.Statements[0].(*ast.AssignStmt)
	assert.Equal(t, "Person", as.Type.Name)
	assert.Equal(t, src[len("Person p = "):len(src)-1], as.Value.(*ast.ConstructExpr).Raw)
}
