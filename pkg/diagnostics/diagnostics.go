// Package diagnostics defines diagnostic types for lexical, parse, and
// evaluation errors raised while interpreting descriptions.
package diagnostics

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Diagnostic code constants.
const (
	ELex              = "E_LEX"
	EParse            = "E_PARSE"
	EUnknownType      = "E_UNKNOWN_TYPE"
	EAmbiguousType    = "E_AMBIGUOUS_TYPE"
	EUnknownInterface = "E_UNKNOWN_INTERFACE"
	EMissingField     = "E_MISSING_FIELD"
	EUnknownField     = "E_UNKNOWN_FIELD"
	EDupField         = "E_DUP_FIELD"
	EType             = "E_TYPE"
	EUnbound          = "E_UNBOUND"
	EDupRegistration  = "E_DUP_REGISTRATION"
	EInit             = "E_INIT"
	ELimit            = "E_LIMIT"
	ECanceled         = "E_CANCELED"
	EIO               = "E_IO"
)

// Span represents a source location range. Lines and columns are 1-based.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// String renders the start position as file:line:col.
func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// Diagnostic represents a lexical, parse, validation, or evaluation diagnostic.
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Span    *Span  `json:"span,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// Error carries a Diagnostic through an error return.
type Error struct {
	Diag Diagnostic
}

func (e *Error) Error() string {
	if e.Diag.Span != nil {
		return fmt.Sprintf("%s: %s", e.Diag.Span, e.Diag.Message)
	}
	return e.Diag.Message
}

// Errorf builds an *Error with a formatted message.
func Errorf(code string, span *Span, format string, args ...any) *Error {
	return &Error{Diag: MakeDiag(code, fmt.Sprintf(format, args...), span, "")}
}

// WithHint returns e with its hint set.
func (e *Error) WithHint(hint string) *Error {
	e.Diag.Hint = hint
	return e
}

// WithSpan returns e with its span set, unless it already has one.
func (e *Error) WithSpan(span *Span) *Error {
	if e.Diag.Span == nil {
		e.Diag.Span = span
	}
	return e
}

// Code reports the diagnostic code of err, or "" when err does not carry one.
func Code(err error) string {
	if d, ok := As(err); ok {
		return d.Code
	}
	return ""
}

// As extracts the Diagnostic carried by err, if any.
func As(err error) (Diagnostic, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Diag, true
	}
	return Diagnostic{}, false
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = d.Span.String()
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
