// Package validator implements the structural checks a parsed description
// must pass before evaluation. It knows nothing about registered types;
// type errors are found by the evaluator.
package validator

import (
	"fmt"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
)

type scope struct {
	bindings map[string]bool
}

func newScope(names []string) *scope {
	s := &scope{bindings: make(map[string]bool, len(names))}
	for _, n := range names {
		s.bindings[n] = true
	}
	return s
}

func (s *scope) has(name string) bool { return s.bindings[name] }

func (s *scope) add(name string) { s.bindings[name] = true }

type validator struct {
	diags []diagnostics.Diagnostic
	scope *scope
}

// Validate checks program and returns its diagnostics. Names in
// predeclared count as already bound, which lets an interactive session
// refer to variables defined by earlier inputs.
func Validate(program *ast.Program, predeclared ...string) []diagnostics.Diagnostic {
	v := &validator{scope: newScope(predeclared)}
	for _, stmt := range program.Statements {
		v.validateStmt(stmt)
	}
	return v.diags
}

func (v *validator) addDiag(code, msg string, span ast.Span, hint string) {
	v.diags = append(v.diags, diagnostics.MakeDiag(code, msg, &span, hint))
}

func (v *validator) validateStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		v.validateExpr(s.Value, false)
		// The name is bound only after its value, so "x = x" is unbound.
		v.scope.add(s.Name)
	case *ast.ExprStmt:
		v.validateExpr(s.Expr, false)
	}
}

func (v *validator) validateExpr(expr ast.Expr, inList bool) {
	switch e := expr.(type) {
	case *ast.VarRef:
		if !v.scope.has(e.Name) {
			v.addDiag(diagnostics.EUnbound, fmt.Sprintf("unbound variable '%s'", e.Name), e.Span,
				"assign it in an earlier statement, e.g. "+e.Name+" = ...;")
		}
	case *ast.ListExpr:
		if inList {
			v.addDiag(diagnostics.EType, "nested lists are not supported", e.Span, "")
		}
		for _, el := range e.Elements {
			v.validateExpr(el, true)
		}
	case *ast.ConstructExpr:
		// Members are checked against the enclosing scope only; a member
		// name is never visible to its siblings.
		seen := make(map[string]bool, len(e.Args))
		for _, arg := range e.Args {
			if seen[arg.Name] {
				v.addDiag(diagnostics.EDupField,
					fmt.Sprintf("member '%s' initialized more than once in %s", arg.Name, e.TypeName), arg.Span, "")
			}
			seen[arg.Name] = true
			v.validateExpr(arg.Value, false)
		}
	}
}
