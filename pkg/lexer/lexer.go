// Package lexer implements the description-language tokenizer.
package lexer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NoelToby/refr/pkg/diagnostics"
)

// TokenType identifies the type of a lexer token.
type TokenType int

const (
	// Keywords
	TokTrue TokenType = iota
	TokFalse
	TokNull // nullptr

	// Literals
	TokIntLit
	TokFloatLit
	TokStringLit

	// Identifiers
	TokIdent

	// Punctuation
	TokLParen    // (
	TokRParen    // )
	TokLBrace    // {
	TokRBrace    // }
	TokLBracket  // [
	TokRBracket  // ]
	TokComma     // ,
	TokEquals    // =
	TokSemicolon // ;

	// Special
	TokEOF
)

var tokenNames = map[TokenType]string{
	TokTrue:      "'true'",
	TokFalse:     "'false'",
	TokNull:      "'nullptr'",
	TokIntLit:    "integer",
	TokFloatLit:  "number",
	TokStringLit: "string",
	TokIdent:     "identifier",
	TokLParen:    "'('",
	TokRParen:    "')'",
	TokLBrace:    "'{'",
	TokRBrace:    "'}'",
	TokLBracket:  "'['",
	TokRBracket:  "']'",
	TokComma:     "','",
	TokEquals:    "'='",
	TokSemicolon: "';'",
	TokEOF:       "end of input",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token represents a single lexer token. Offset and End are byte offsets
// into the text the tokenizer has consumed so far; see Tokenizer.Text.
type Token struct {
	Type   TokenType
	Value  string
	Span   diagnostics.Span
	Offset int
	End    int
}

var keywords = map[string]TokenType{
	"true":    TokTrue,
	"false":   TokFalse,
	"nullptr": TokNull,
}

// Tokenizer turns a character stream into tokens. It reads lazily from its
// source, so it works the same over an in-memory string and an open file or
// terminal. A Tokenizer holds no semantic state; use one per parse.
type Tokenizer struct {
	r        *bufio.Reader
	filename string
	consumed strings.Builder
	line     int
	col      int
	ioErr    error

	peeked  *Token
	peekErr error

	// afterValue is set when the last token ends an expression. A sign
	// there cannot start a number, since descriptions have no arithmetic.
	afterValue bool
}

// NewTokenizer returns a Tokenizer reading from r.
func NewTokenizer(r io.Reader, filename string) *Tokenizer {
	return &Tokenizer{
		r:        bufio.NewReader(r),
		filename: filename,
		line:     1,
		col:      1,
	}
}

// NewStringTokenizer returns a Tokenizer over an in-memory description.
func NewStringTokenizer(source, filename string) *Tokenizer {
	return NewTokenizer(strings.NewReader(source), filename)
}

// Filename reports the name used in token spans.
func (t *Tokenizer) Filename() string {
	return t.filename
}

// Text returns the raw consumed source between two byte offsets.
func (t *Tokenizer) Text(start, end int) string {
	s := t.consumed.String()
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

// NextToken returns the next token, or a TokEOF token at the end of input.
func (t *Tokenizer) NextToken() (Token, error) {
	if t.peeked != nil {
		tok, err := *t.peeked, t.peekErr
		t.peeked, t.peekErr = nil, nil
		return tok, err
	}
	return t.scan()
}

// PeekToken returns the next token without consuming it.
func (t *Tokenizer) PeekToken() (Token, error) {
	if t.peeked == nil && t.peekErr == nil {
		tok, err := t.scan()
		t.peeked, t.peekErr = &tok, err
	}
	return *t.peeked, t.peekErr
}

// Tokenize breaks source into a slice of tokens ending with TokEOF.
func Tokenize(source, filename string) ([]Token, error) {
	tz := NewStringTokenizer(source, filename)
	var tokens []Token
	for {
		tok, err := tz.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokEOF {
			return tokens, nil
		}
	}
}

// --- character level ---

func (t *Tokenizer) peekAt(offset int) byte {
	buf, err := t.r.Peek(offset + 1)
	if len(buf) <= offset {
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) && t.ioErr == nil {
			t.ioErr = err
		}
		return 0
	}
	return buf[offset]
}

func (t *Tokenizer) peek() byte {
	return t.peekAt(0)
}

func (t *Tokenizer) atEnd() bool {
	_, err := t.r.Peek(1)
	if err != nil && !errors.Is(err, io.EOF) && t.ioErr == nil {
		t.ioErr = err
	}
	return err != nil
}

func (t *Tokenizer) advance() byte {
	ch, err := t.r.ReadByte()
	if err != nil {
		return 0
	}
	t.consumed.WriteByte(ch)
	if ch == '\n' {
		t.line++
		t.col = 1
	} else {
		t.col++
	}
	return ch
}

func (t *Tokenizer) offset() int {
	return t.consumed.Len()
}

func (t *Tokenizer) span(startLine, startCol int) diagnostics.Span {
	return diagnostics.Span{
		File:      t.filename,
		StartLine: startLine,
		StartCol:  startCol,
		EndLine:   t.line,
		EndCol:    t.col,
	}
}

func (t *Tokenizer) lexError(line, col int, msg string) error {
	span := &diagnostics.Span{File: t.filename, StartLine: line, StartCol: col, EndLine: line, EndCol: col + 1}
	return &LexError{Diag: diagnostics.MakeDiag(diagnostics.ELex, msg, span, "")}
}

// LexError wraps a diagnostic for lex errors.
type LexError struct {
	Diag diagnostics.Diagnostic
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Diag.Span, e.Diag.Message)
}

// Unwrap exposes the diagnostic as a *diagnostics.Error.
func (e *LexError) Unwrap() error {
	return &diagnostics.Error{Diag: e.Diag}
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlphaNumeric(ch byte) bool {
	return isAlpha(ch) || isDigit(ch)
}

func (t *Tokenizer) skipWhitespaceAndComments() error {
	for !t.atEnd() {
		ch := t.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			t.advance()
		case ch == '/' && t.peekAt(1) == '/':
			for !t.atEnd() && t.peek() != '\n' {
				t.advance()
			}
		case ch == '/' && t.peekAt(1) == '*':
			startLine, startCol := t.line, t.col
			t.advance()
			t.advance()
			closed := false
			for !t.atEnd() {
				if t.peek() == '*' && t.peekAt(1) == '/' {
					t.advance()
					t.advance()
					closed = true
					break
				}
				t.advance()
			}
			if !closed {
				return t.lexError(startLine, startCol, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

func (t *Tokenizer) scan() (Token, error) {
	tok, err := t.scanToken()
	if err == nil {
		t.afterValue = endsValue(tok.Type)
	}
	return tok, err
}

func endsValue(typ TokenType) bool {
	switch typ {
	case TokIntLit, TokFloatLit, TokStringLit, TokIdent, TokTrue, TokFalse, TokNull,
		TokRParen, TokRBrace, TokRBracket:
		return true
	}
	return false
}

func (t *Tokenizer) scanToken() (Token, error) {
	if err := t.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}
	if t.ioErr != nil {
		return Token{}, t.lexError(t.line, t.col, fmt.Sprintf("read error: %v", t.ioErr))
	}

	startLine, startCol := t.line, t.col
	start := t.offset()
	if t.atEnd() {
		return Token{Type: TokEOF, Span: t.span(startLine, startCol), Offset: start, End: start}, nil
	}

	single := func(typ TokenType) (Token, error) {
		ch := t.advance()
		return Token{Type: typ, Value: string(ch), Span: t.span(startLine, startCol), Offset: start, End: t.offset()}, nil
	}

	ch := t.peek()
	switch ch {
	case '(':
		return single(TokLParen)
	case ')':
		return single(TokRParen)
	case '{':
		return single(TokLBrace)
	case '}':
		return single(TokRBrace)
	case '[':
		return single(TokLBracket)
	case ']':
		return single(TokRBracket)
	case ',':
		return single(TokComma)
	case '=':
		return single(TokEquals)
	case ';':
		return single(TokSemicolon)
	case '"':
		return t.scanString()
	}

	if (ch == '-' || ch == '+') && t.afterValue {
		t.advance()
		return Token{}, t.lexError(startLine, startCol,
			fmt.Sprintf("unexpected '%c' after a value; use ';' between statements", ch))
	}
	if isDigit(ch) || ((ch == '-' || ch == '+') && isDigit(t.peekAt(1))) {
		return t.scanNumber()
	}
	if isAlpha(ch) {
		return t.scanIdentOrKeyword(), nil
	}

	t.advance()
	if ch >= utf8.RuneSelf {
		return Token{}, t.lexError(startLine, startCol, "unexpected non-ASCII character")
	}
	return Token{}, t.lexError(startLine, startCol, fmt.Sprintf("unexpected character '%c'", ch))
}

func (t *Tokenizer) scanString() (Token, error) {
	startLine, startCol := t.line, t.col
	start := t.offset()
	t.advance() // consume opening "

	var buf strings.Builder
	for !t.atEnd() {
		ch := t.peek()
		switch ch {
		case '"':
			t.advance() // consume closing "
			s := buf.String()
			if !utf8.ValidString(s) {
				return Token{}, t.lexError(startLine, startCol, "invalid UTF-8 in string literal")
			}
			return Token{Type: TokStringLit, Value: s, Span: t.span(startLine, startCol), Offset: start, End: t.offset()}, nil
		case '\n':
			return Token{}, t.lexError(startLine, startCol, "unterminated string literal")
		case '\\':
			t.advance()
			if t.atEnd() {
				return Token{}, t.lexError(startLine, startCol, "unterminated string escape")
			}
			esc := t.advance()
			switch esc {
			case '"':
				buf.WriteByte('"')
			case '\\':
				buf.WriteByte('\\')
			case '/':
				buf.WriteByte('/')
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'u':
				var hex [4]byte
				for i := range hex {
					if t.atEnd() {
						return Token{}, t.lexError(startLine, startCol, "incomplete unicode escape")
					}
					hex[i] = t.advance()
				}
				codepoint, err := strconv.ParseUint(string(hex[:]), 16, 32)
				if err != nil {
					return Token{}, t.lexError(startLine, startCol, fmt.Sprintf("invalid unicode escape: \\u%s", hex[:]))
				}
				buf.WriteRune(rune(codepoint))
			default:
				return Token{}, t.lexError(startLine, startCol, fmt.Sprintf("invalid escape character: \\%c", esc))
			}
		default:
			buf.WriteByte(t.advance())
		}
	}
	return Token{}, t.lexError(startLine, startCol, "unterminated string literal")
}

func (t *Tokenizer) scanNumber() (Token, error) {
	startLine, startCol := t.line, t.col
	start := t.offset()
	var text strings.Builder
	isFloat := false

	if ch := t.peek(); ch == '-' || ch == '+' {
		text.WriteByte(t.advance())
	}
	for !t.atEnd() && isDigit(t.peek()) {
		text.WriteByte(t.advance())
	}

	// Optional fractional part
	if t.peek() == '.' {
		isFloat = true
		text.WriteByte(t.advance())
		if !isDigit(t.peek()) {
			return Token{}, t.lexError(startLine, startCol, fmt.Sprintf("malformed number %q: expected digit after '.'", text.String()))
		}
		for !t.atEnd() && isDigit(t.peek()) {
			text.WriteByte(t.advance())
		}
	}

	// Optional exponent
	if ch := t.peek(); ch == 'e' || ch == 'E' {
		isFloat = true
		text.WriteByte(t.advance())
		if ch := t.peek(); ch == '+' || ch == '-' {
			text.WriteByte(t.advance())
		}
		if !isDigit(t.peek()) {
			return Token{}, t.lexError(startLine, startCol, fmt.Sprintf("malformed number %q: expected exponent digits", text.String()))
		}
		for !t.atEnd() && isDigit(t.peek()) {
			text.WriteByte(t.advance())
		}
	}

	if isAlpha(t.peek()) || t.peek() == '.' {
		text.WriteByte(t.advance())
		return Token{}, t.lexError(startLine, startCol, fmt.Sprintf("malformed number %q", text.String()))
	}

	typ := TokIntLit
	if isFloat {
		typ = TokFloatLit
	}
	return Token{Type: typ, Value: text.String(), Span: t.span(startLine, startCol), Offset: start, End: t.offset()}, nil
}

func (t *Tokenizer) scanIdentOrKeyword() Token {
	startLine, startCol := t.line, t.col
	start := t.offset()
	var text strings.Builder
	for !t.atEnd() && isAlphaNumeric(t.peek()) {
		text.WriteByte(t.advance())
	}
	word := text.String()
	typ := TokIdent
	if kw, ok := keywords[word]; ok {
		typ = kw
	}
	return Token{Type: typ, Value: word, Span: t.span(startLine, startCol), Offset: start, End: t.offset()}
}
