// Package formatter prints a parsed description in canonical form.
package formatter

import (
	"math"
	"strconv"
	"strings"

	"github.com/NoelToby/refr/pkg/ast"
)

const (
	indent   = "  "
	maxWidth = 72
)

// Format pretty-prints a description AST back to source. Every statement
// ends with a semicolon; constructions that fit on one line stay inline.
func Format(program *ast.Program) string {
	if len(program.Statements) == 0 {
		return ""
	}
	lines := make([]string, len(program.Statements))
	for i, s := range program.Statements {
		lines[i] = formatStmt(s)
	}
	return strings.Join(lines, "\n") + "\n"
}

// HasComments reports whether source contains a // or /* */ comment
// outside string literals. Formatting drops comments, so callers use this
// to warn before rewriting a file.
func HasComments(source string) bool {
	inString := false
	for i := 0; i < len(source); i++ {
		ch := source[i]
		if inString {
			switch ch {
			case '\\':
				i++
			case '"', '\n':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			continue
		}
		if ch == '/' && i+1 < len(source) && (source[i+1] == '/' || source[i+1] == '*') {
			return true
		}
	}
	return false
}

func formatStmt(s ast.Stmt) string {
	switch stmt := s.(type) {
	case *ast.AssignStmt:
		prefix := stmt.Name + " = "
		if stmt.Type != nil {
			prefix = stmt.Type.String() + " " + prefix
		}
		return prefix + formatExpr(stmt.Value, 0) + ";"
	case *ast.ExprStmt:
		return formatExpr(stmt.Expr, 0) + ";"
	}
	return ""
}

func formatExpr(e ast.Expr, depth int) string {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		return strconv.FormatInt(expr.Value, 10)
	case *ast.FloatLiteral:
		return FormatFloat(expr.Value)
	case *ast.BoolLiteral:
		if expr.Value {
			return "true"
		}
		return "false"
	case *ast.StrLiteral:
		return Quote(expr.Value)
	case *ast.NullLiteral:
		return "nullptr"
	case *ast.VarRef:
		return expr.Name
	case *ast.ListExpr:
		return formatList(expr, depth)
	case *ast.ConstructExpr:
		return formatConstruct(expr, depth)
	}
	return ""
}

// Quote renders s as a string literal the lexer reads back unchanged.
func Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				b.WriteString(`\u`)
				h := strconv.FormatInt(int64(r), 16)
				b.WriteString(strings.Repeat("0", 4-len(h)) + h)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FormatFloat renders a double in plain decimal notation with at least
// one fractional digit.
func FormatFloat(value float64) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}

	raw := strconv.FormatFloat(value, 'g', -1, 64)
	if strings.ContainsAny(raw, "eE") {
		expanded := expandScientificNotation(raw)
		if !strings.Contains(expanded, ".") {
			expanded += ".0"
		}
		return expanded
	}
	if !strings.Contains(raw, ".") {
		raw += ".0"
	}
	return raw
}

func expandScientificNotation(value string) string {
	parts := strings.SplitN(strings.ToLower(value), "e", 2)
	if len(parts) != 2 {
		return value
	}
	exponent, err := strconv.Atoi(parts[1])
	if err != nil {
		return value
	}

	sign := ""
	digits := parts[0]
	if strings.HasPrefix(digits, "-") {
		sign = "-"
		digits = digits[1:]
	}

	intPart, fracPart, _ := strings.Cut(digits, ".")
	compact := intPart + fracPart
	decimalIndex := len(intPart) + exponent

	if decimalIndex <= 0 {
		return sign + "0." + strings.Repeat("0", -decimalIndex) + compact
	}
	if decimalIndex >= len(compact) {
		return sign + compact + strings.Repeat("0", decimalIndex-len(compact)) + ".0"
	}
	return sign + compact[:decimalIndex] + "." + compact[decimalIndex:]
}

func formatConstruct(ce *ast.ConstructExpr, depth int) string {
	if len(ce.Args) == 0 {
		return ce.TypeName + "()"
	}

	// Try inline first
	inlineParts := make([]string, len(ce.Args))
	multiline := false
	for i, arg := range ce.Args {
		inlineParts[i] = arg.Name + "(" + formatExpr(arg.Value, depth+1) + ")"
		multiline = multiline || strings.Contains(inlineParts[i], "\n")
	}
	inline := ce.TypeName + "(" + strings.Join(inlineParts, ", ") + ")"
	if !multiline && len(strings.Repeat(indent, depth))+len(inline) <= maxWidth {
		return inline
	}

	inner := strings.Repeat(indent, depth+1)
	outer := strings.Repeat(indent, depth)
	parts := make([]string, len(ce.Args))
	for i, arg := range ce.Args {
		parts[i] = inner + arg.Name + "(" + formatExpr(arg.Value, depth+1) + ")"
	}
	return ce.TypeName + "(\n" + strings.Join(parts, ",\n") + "\n" + outer + ")"
}

func formatList(list *ast.ListExpr, depth int) string {
	if len(list.Elements) == 0 {
		return "{}"
	}

	inlineParts := make([]string, len(list.Elements))
	multiline := false
	for i, e := range list.Elements {
		inlineParts[i] = formatExpr(e, depth+1)
		multiline = multiline || strings.Contains(inlineParts[i], "\n")
	}
	inline := "{" + strings.Join(inlineParts, ", ") + "}"
	if !multiline && len(strings.Repeat(indent, depth))+len(inline) <= maxWidth {
		return inline
	}

	inner := strings.Repeat(indent, depth+1)
	outer := strings.Repeat(indent, depth)
	parts := make([]string, len(list.Elements))
	for i, e := range list.Elements {
		parts[i] = inner + formatExpr(e, depth+1)
	}
	return "{\n" + strings.Join(parts, ",\n") + "\n" + outer + "}"
}
