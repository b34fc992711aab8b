package evaluator

import (
	"github.com/NoelToby/refr/pkg/diagnostics"
)

// DefaultMaxDepth bounds construction nesting when Limits.MaxDepth is zero.
const DefaultMaxDepth = 64

// Limits holds the resource limits for evaluating one program.
type Limits struct {
	MaxDepth         int // nested constructions; 0 means DefaultMaxDepth
	MaxConstructions int // constructions per program; 0 means unlimited
}

// LimitTracker tracks consumption against Limits during evaluation.
type LimitTracker struct {
	Limits        Limits
	Depth         int
	Constructions int
}

func (t *LimitTracker) maxDepth() int {
	if t.Limits.MaxDepth > 0 {
		return t.Limits.MaxDepth
	}
	return DefaultMaxDepth
}

// enter records the start of a construction at span.
func (t *LimitTracker) enter(span *diagnostics.Span) error {
	if t.Depth >= t.maxDepth() {
		return diagnostics.Errorf(diagnostics.ELimit, span,
			"construction nesting exceeds the limit of %d", t.maxDepth())
	}
	if t.Limits.MaxConstructions > 0 && t.Constructions >= t.Limits.MaxConstructions {
		return diagnostics.Errorf(diagnostics.ELimit, span,
			"construction count exceeds the limit of %d", t.Limits.MaxConstructions)
	}
	t.Depth++
	t.Constructions++
	return nil
}

func (t *LimitTracker) leave() {
	t.Depth--
}
