// Package ast defines the description-language AST node types.
package ast

import "github.com/NoelToby/refr/pkg/diagnostics"

// Span is a source location range.
type Span = diagnostics.Span

// Node is the interface implemented by all AST nodes.
type Node interface {
	Kind() string
	NodeSpan() Span
}

// --- Expr is the interface for all expression nodes ---

type Expr interface {
	Node
	exprNode() // sealed marker
}

// --- Stmt is the interface for all statement nodes ---

type Stmt interface {
	Node
	stmtNode() // sealed marker
}

// --- Program ---

type Program struct {
	Span       Span
	Statements []Stmt
}

func (n *Program) Kind() string   { return "Program" }
func (n *Program) NodeSpan() Span { return n.Span }

// --- Statements ---

// TypeRef names a declared type: a primitive (bool, int, double, string),
// an interface with a registry, or either of those as a vector ("[]").
type TypeRef struct {
	Span Span
	Name string
	List bool
}

func (n *TypeRef) Kind() string   { return "TypeRef" }
func (n *TypeRef) NodeSpan() Span { return n.Span }

// String renders the type as written in a description.
func (n *TypeRef) String() string {
	if n.List {
		return n.Name + "[]"
	}
	return n.Name
}

// AssignStmt binds a value to a name. Type is nil for an untyped
// assignment ("x = ...").
type AssignStmt struct {
	Span     Span
	Type     *TypeRef
	Name     string
	NameSpan Span
	Value    Expr
}

func (n *AssignStmt) Kind() string   { return "AssignStmt" }
func (n *AssignStmt) NodeSpan() Span { return n.Span }
func (n *AssignStmt) stmtNode()      {}

type ExprStmt struct {
	Span Span
	Expr Expr
}

func (n *ExprStmt) Kind() string   { return "ExprStmt" }
func (n *ExprStmt) NodeSpan() Span { return n.Span }
func (n *ExprStmt) stmtNode()      {}

// --- Literal Expressions ---

type IntLiteral struct {
	Span  Span
	Value int64
}

func (n *IntLiteral) Kind() string   { return "IntLiteral" }
func (n *IntLiteral) NodeSpan() Span { return n.Span }
func (n *IntLiteral) exprNode()      {}

type FloatLiteral struct {
	Span  Span
	Value float64
}

func (n *FloatLiteral) Kind() string   { return "FloatLiteral" }
func (n *FloatLiteral) NodeSpan() Span { return n.Span }
func (n *FloatLiteral) exprNode()      {}

type BoolLiteral struct {
	Span  Span
	Value bool
}

func (n *BoolLiteral) Kind() string   { return "BoolLiteral" }
func (n *BoolLiteral) NodeSpan() Span { return n.Span }
func (n *BoolLiteral) exprNode()      {}

type StrLiteral struct {
	Span  Span
	Value string
}

func (n *StrLiteral) Kind() string   { return "StrLiteral" }
func (n *StrLiteral) NodeSpan() Span { return n.Span }
func (n *StrLiteral) exprNode()      {}

type NullLiteral struct {
	Span Span
}

func (n *NullLiteral) Kind() string   { return "NullLiteral" }
func (n *NullLiteral) NodeSpan() Span { return n.Span }
func (n *NullLiteral) exprNode()      {}

// --- References and collections ---

type VarRef struct {
	Span Span
	Name string
}

func (n *VarRef) Kind() string   { return "VarRef" }
func (n *VarRef) NodeSpan() Span { return n.Span }
func (n *VarRef) exprNode()      {}

type ListExpr struct {
	Span     Span
	Elements []Expr
}

func (n *ListExpr) Kind() string   { return "ListExpr" }
func (n *ListExpr) NodeSpan() Span { return n.Span }
func (n *ListExpr) exprNode()      {}

// --- Construction ---

// MemberInit is one "name(expr)" entry of a construction's argument list.
type MemberInit struct {
	Span  Span
	Name  string
	Value Expr
}

func (n *MemberInit) Kind() string   { return "MemberInit" }
func (n *MemberInit) NodeSpan() Span { return n.Span }

// ConstructExpr is "TypeName(member(expr), ...)". Raw holds the exact
// source text of the construction, comments and whitespace included.
type ConstructExpr struct {
	Span     Span
	TypeName string
	Args     []*MemberInit
	Raw      string
}

func (n *ConstructExpr) Kind() string   { return "ConstructExpr" }
func (n *ConstructExpr) NodeSpan() Span { return n.Span }
func (n *ConstructExpr) exprNode()      {}

// Inspect traverses the expression tree rooted at e in depth-first order,
// calling fn for each expression. Children are skipped when fn returns false.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *ListExpr:
		for _, el := range n.Elements {
			Inspect(el, fn)
		}
	case *ConstructExpr:
		for _, arg := range n.Args {
			Inspect(arg.Value, fn)
		}
	}
}
