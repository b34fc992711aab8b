package diagnostics

import (
	"fmt"
	"strings"
)

// Snippet renders d against src as a numbered excerpt with a caret under
// the diagnostic's start column:
//
//	error[E_PARSE]: expected ')', got ';'
//	  --> input.infact:2:18
//	   1 | c = Cow(name("brown"),
//	   2 |     age(2), name(;
//	     |                  ^
//
// At most one line of context is shown on either side. Diagnostics without
// a span fall back to FormatDiagnostic.
func Snippet(src string, d Diagnostic) string {
	if d.Span == nil || src == "" {
		return FormatDiagnostic(d, true)
	}
	lines := strings.Split(src, "\n")
	line := clamp(d.Span.StartLine, 1, len(lines))
	col := d.Span.StartCol
	if col < 1 {
		col = 1
	}

	first := clamp(line-1, 1, len(lines))
	last := clamp(line+1, 1, len(lines))
	width := len(fmt.Sprint(last))

	var b strings.Builder
	fmt.Fprintf(&b, "error[%s]: %s\n  --> %s\n", d.Code, d.Message, d.Span)
	for n := first; n <= last; n++ {
		fmt.Fprintf(&b, "  %*d | %s\n", width, n, lines[n-1])
		if n == line {
			fmt.Fprintf(&b, "  %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
		}
	}
	if d.Hint != "" {
		fmt.Fprintf(&b, "  hint: %s\n", d.Hint)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
