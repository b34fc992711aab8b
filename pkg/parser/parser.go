// Package parser implements the description-language parser.
package parser

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/lexer"
)

// incompleteMsg prefixes every error caused by running out of input, so
// interactive drivers can ask for another line instead of reporting it.
const incompleteMsg = "unexpected end of input"

type parser struct {
	tz        *lexer.Tokenizer
	ahead     []lexer.Token
	prev      lexer.Token
	diags     []diagnostics.Diagnostic
	lexFailed bool
}

// Parse tokenizes source and parses it into an AST.
func Parse(source, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	return parse(lexer.NewStringTokenizer(source, filename))
}

// ParseReader parses a description read lazily from r.
func ParseReader(r io.Reader, filename string) (*ast.Program, []diagnostics.Diagnostic) {
	return parse(lexer.NewTokenizer(r, filename))
}

// Incomplete reports whether diags stem only from input ending early,
// such as an unclosed construction or block comment.
func Incomplete(diags []diagnostics.Diagnostic) bool {
	if len(diags) == 0 {
		return false
	}
	for _, d := range diags {
		if !strings.HasPrefix(d.Message, incompleteMsg) &&
			!strings.HasPrefix(d.Message, "unterminated block comment") {
			return false
		}
	}
	return true
}

func parse(tz *lexer.Tokenizer) (*ast.Program, []diagnostics.Diagnostic) {
	p := &parser{tz: tz}
	prog := p.parseProgram()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return prog, nil
}

// --- token stream ---

func (p *parser) fill(n int) {
	for len(p.ahead) <= n {
		if p.lexFailed {
			p.ahead = append(p.ahead, p.eofToken())
			continue
		}
		tok, err := p.tz.NextToken()
		if err != nil {
			p.lexFailed = true
			var le *lexer.LexError
			if errors.As(err, &le) {
				p.diags = append(p.diags, le.Diag)
			} else {
				p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.ELex, err.Error(), nil, ""))
			}
			tok = p.eofToken()
		}
		p.ahead = append(p.ahead, tok)
	}
}

func (p *parser) eofToken() lexer.Token {
	return lexer.Token{Type: lexer.TokEOF, Span: p.prev.Span, Offset: p.prev.End, End: p.prev.End}
}

func (p *parser) current() lexer.Token {
	p.fill(0)
	return p.ahead[0]
}

func (p *parser) peek() lexer.TokenType {
	return p.current().Type
}

func (p *parser) peekAt(offset int) lexer.TokenType {
	p.fill(offset)
	return p.ahead[offset].Type
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if tok.Type != lexer.TokEOF {
		p.ahead = p.ahead[1:]
		p.prev = tok
	}
	return tok
}

func (p *parser) expect(typ lexer.TokenType, what string) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.unexpected(tok, what)
		return tok, false
	}
	return p.advance(), true
}

func (p *parser) unexpected(tok lexer.Token, what string) {
	if tok.Type == lexer.TokEOF {
		p.addError(fmt.Sprintf("%s: expected %s", incompleteMsg, what), &tok.Span)
		return
	}
	p.addError(fmt.Sprintf("expected %s, got %s", what, describe(tok)), &tok.Span)
}

func (p *parser) addError(msg string, span *ast.Span) {
	// After a lexical error the stream is a synthetic EOF; anything
	// reported from here on would be noise.
	if p.lexFailed {
		return
	}
	var sp *ast.Span
	if span != nil {
		s := *span
		sp = &s
	}
	p.diags = append(p.diags, diagnostics.MakeDiag(diagnostics.EParse, msg, sp, ""))
}

func (p *parser) spanFromTo(start, end ast.Span) ast.Span {
	return ast.Span{
		File:      start.File,
		StartLine: start.StartLine,
		StartCol:  start.StartCol,
		EndLine:   end.EndLine,
		EndCol:    end.EndCol,
	}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokEOF:
		return "end of input"
	case lexer.TokStringLit:
		return strconv.Quote(tok.Value)
	default:
		return "'" + tok.Value + "'"
	}
}

// synchronize skips to the next statement boundary after a syntax error.
func (p *parser) synchronize() {
	for {
		switch p.peek() {
		case lexer.TokEOF:
			return
		case lexer.TokSemicolon:
			p.advance()
			return
		}
		p.advance()
	}
}

// --- Program ---

func (p *parser) parseProgram() *ast.Program {
	startSpan := p.current().Span
	var stmts []ast.Stmt

	for p.peek() != lexer.TokEOF {
		if p.peek() == lexer.TokSemicolon {
			p.advance() // empty statement
			continue
		}
		stmt := p.parseStmt()
		if stmt == nil {
			if p.lexFailed {
				break
			}
			p.synchronize()
			continue
		}
		stmts = append(stmts, stmt)
		if p.peek() == lexer.TokSemicolon {
			p.advance()
		}
	}

	return &ast.Program{
		Span:       p.spanFromTo(startSpan, p.prev.Span),
		Statements: stmts,
	}
}

// --- Statements ---

func (p *parser) parseStmt() ast.Stmt {
	if p.peek() == lexer.TokIdent {
		// Two identifiers in a row, or an identifier and '[', can only
		// begin a typed declaration.
		switch p.peekAt(1) {
		case lexer.TokIdent, lexer.TokLBracket:
			return p.parseTypedDecl()
		case lexer.TokEquals:
			return p.parseAssign(nil)
		}
	}
	return p.parseExprStmt()
}

func (p *parser) parseTypedDecl() ast.Stmt {
	typeTok := p.advance()
	ref := &ast.TypeRef{Span: typeTok.Span, Name: typeTok.Value}
	if p.peek() == lexer.TokLBracket {
		p.advance()
		closeTok, ok := p.expect(lexer.TokRBracket, "']'")
		if !ok {
			return nil
		}
		ref.List = true
		ref.Span = p.spanFromTo(typeTok.Span, closeTok.Span)
	}
	return p.parseAssign(ref)
}

func (p *parser) parseAssign(typ *ast.TypeRef) ast.Stmt {
	nameTok, ok := p.expect(lexer.TokIdent, "variable name")
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokEquals, "'='"); !ok {
		return nil
	}
	value := p.parseExpr()
	if value == nil {
		return nil
	}
	start := nameTok.Span
	if typ != nil {
		start = typ.Span
	}
	return &ast.AssignStmt{
		Span:     p.spanFromTo(start, value.NodeSpan()),
		Type:     typ,
		Name:     nameTok.Value,
		NameSpan: nameTok.Span,
		Value:    value,
	}
}

func (p *parser) parseExprStmt() ast.Stmt {
	expr := p.parseExpr()
	if expr == nil {
		return nil
	}
	return &ast.ExprStmt{Span: expr.NodeSpan(), Expr: expr}
}

// --- Expressions ---

func (p *parser) parseExpr() ast.Expr {
	tok := p.current()
	switch tok.Type {
	case lexer.TokIdent:
		if p.peekAt(1) == lexer.TokLParen {
			return p.parseConstruct()
		}
		p.advance()
		return &ast.VarRef{Span: tok.Span, Name: tok.Value}
	case lexer.TokIntLit:
		p.advance()
		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("integer literal %s out of range", tok.Value), &tok.Span)
			return nil
		}
		return &ast.IntLiteral{Span: tok.Span, Value: v}
	case lexer.TokFloatLit:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.addError(fmt.Sprintf("floating-point literal %s out of range", tok.Value), &tok.Span)
			return nil
		}
		return &ast.FloatLiteral{Span: tok.Span, Value: v}
	case lexer.TokStringLit:
		p.advance()
		return &ast.StrLiteral{Span: tok.Span, Value: tok.Value}
	case lexer.TokTrue, lexer.TokFalse:
		p.advance()
		return &ast.BoolLiteral{Span: tok.Span, Value: tok.Type == lexer.TokTrue}
	case lexer.TokNull:
		p.advance()
		return &ast.NullLiteral{Span: tok.Span}
	case lexer.TokLBrace:
		return p.parseList()
	default:
		p.unexpected(tok, "expression")
		return nil
	}
}

func (p *parser) parseList() ast.Expr {
	open := p.advance() // consume '{'
	var elems []ast.Expr
	for p.peek() != lexer.TokRBrace {
		el := p.parseExpr()
		if el == nil {
			return nil
		}
		elems = append(elems, el)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	closeTok, ok := p.expect(lexer.TokRBrace, "',' or '}'")
	if !ok {
		return nil
	}
	return &ast.ListExpr{Span: p.spanFromTo(open.Span, closeTok.Span), Elements: elems}
}

// parseConstruct parses "TypeName(member(expr), ...)", keeping the exact
// source text so the constructed object's Init can see it.
func (p *parser) parseConstruct() ast.Expr {
	nameTok := p.advance()
	p.advance() // consume '('

	var args []*ast.MemberInit
	for p.peek() != lexer.TokRParen {
		arg := p.parseMemberInit()
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		if p.peek() != lexer.TokComma {
			break
		}
		p.advance()
	}
	closeTok, ok := p.expect(lexer.TokRParen, "',' or ')'")
	if !ok {
		return nil
	}
	return &ast.ConstructExpr{
		Span:     p.spanFromTo(nameTok.Span, closeTok.Span),
		TypeName: nameTok.Value,
		Args:     args,
		Raw:      p.tz.Text(nameTok.Offset, closeTok.End),
	}
}

func (p *parser) parseMemberInit() *ast.MemberInit {
	nameTok, ok := p.expect(lexer.TokIdent, "member name")
	if !ok {
		return nil
	}
	if _, ok := p.expect(lexer.TokLParen, fmt.Sprintf("'(' after member %s", nameTok.Value)); !ok {
		return nil
	}
	value := p.parseExpr()
	if value == nil {
		return nil
	}
	closeTok, ok := p.expect(lexer.TokRParen, fmt.Sprintf("')' to close member %s", nameTok.Value))
	if !ok {
		return nil
	}
	return &ast.MemberInit{
		Span:  p.spanFromTo(nameTok.Span, closeTok.Span),
		Name:  nameTok.Value,
		Value: value,
	}
}
