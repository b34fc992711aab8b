package evaluator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
)

// EvalFunc evaluates expr in env, coercing the result to want. Catalogs
// call back into it to evaluate member initializers.
type EvalFunc func(expr ast.Expr, want Type, env *Env) (Value, error)

// Catalog is the evaluator's view of the registered types.
type Catalog interface {
	Types
	// Construct builds the object described by ce. want is AnyType or an
	// object type naming the interface to resolve ce.TypeName in; env is
	// the scope the construction appears in.
	Construct(ce *ast.ConstructExpr, want Type, env *Env, eval EvalFunc) (Value, error)
}

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceRunStart       TraceEventType = "run_start"
	TraceRunEnd         TraceEventType = "run_end"
	TraceStmtStart      TraceEventType = "stmt_start"
	TraceStmtEnd        TraceEventType = "stmt_end"
	TraceConstructStart TraceEventType = "construct_start"
	TraceConstructEnd   TraceEventType = "construct_end"
	TraceLimitExceeded  TraceEventType = "limit_exceeded"
	TraceError          TraceEventType = "error"
)

// TraceEvent represents a single trace event emitted during evaluation.
type TraceEvent struct {
	Timestamp string            `json:"ts"`
	RunID     string            `json:"runId"`
	Event     TraceEventType    `json:"event"`
	Span      *diagnostics.Span `json:"span,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

// ExecOptions configures program evaluation.
type ExecOptions struct {
	Catalog Catalog
	// Env receives top-level bindings. A fresh global scope over Catalog
	// is used when nil.
	Env             *Env
	Limits          Limits
	Logger          logrus.FieldLogger
	Trace           func(event TraceEvent)
	RunID           string
	ContinueOnError bool
}

// ExecResult holds the result of evaluating a program.
type ExecResult struct {
	Env *Env
	// Last is the value of the last statement that evaluated successfully.
	Last        Value
	Diagnostics []diagnostics.Diagnostic
	Tracker     LimitTracker
}

type evaluator struct {
	ctx     context.Context
	opts    ExecOptions
	log     logrus.FieldLogger
	tracker LimitTracker
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (ev *evaluator) emit(event TraceEventType, span *diagnostics.Span, data map[string]string) {
	if ev.opts.Trace == nil {
		return
	}
	ev.opts.Trace(TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		RunID:     ev.opts.RunID,
		Event:     event,
		Span:      span,
		Data:      data,
	})
}

// Execute evaluates a program statement by statement. Each statement runs
// to completion or fails as a whole; a failure stops evaluation unless
// ContinueOnError is set, in which case every failure is collected in the
// result's Diagnostics and the first one is returned.
func Execute(ctx context.Context, program *ast.Program, opts ExecOptions) (*ExecResult, error) {
	ev := &evaluator{
		ctx:     ctx,
		opts:    opts,
		log:     opts.Logger,
		tracker: LimitTracker{Limits: opts.Limits},
	}
	if ev.log == nil {
		ev.log = discardLogger()
	}
	if opts.RunID != "" {
		ev.log = ev.log.WithField("run_id", opts.RunID)
	}
	env := opts.Env
	if env == nil {
		var types Types
		if opts.Catalog != nil {
			types = opts.Catalog
		}
		env = NewGlobalEnv(types)
	}
	result := &ExecResult{Env: env}

	span := program.Span
	ev.emit(TraceRunStart, &span, nil)
	defer func() {
		result.Tracker = ev.tracker
		ev.emit(TraceRunEnd, &span, map[string]string{
			"constructions": fmt.Sprint(ev.tracker.Constructions),
			"errors":        fmt.Sprint(len(result.Diagnostics)),
		})
	}()

	var firstErr error
	for i, stmt := range program.Statements {
		stmtSpan := stmt.NodeSpan()
		if err := ctx.Err(); err != nil {
			cerr := diagnostics.Errorf(diagnostics.ECanceled, &stmtSpan, "evaluation canceled: %v", err)
			result.Diagnostics = append(result.Diagnostics, cerr.Diag)
			return result, cerr
		}

		ev.emit(TraceStmtStart, &stmtSpan, nil)
		val, err := ev.execStmt(stmt, env)
		if err != nil {
			derr := asDiagError(err, &stmtSpan)
			result.Diagnostics = append(result.Diagnostics, derr.Diag)
			ev.emit(TraceError, derr.Diag.Span, map[string]string{"code": derr.Diag.Code, "message": derr.Diag.Message})
			ev.log.WithField("stmt", i).WithField("code", derr.Diag.Code).Debug(derr.Diag.Message)
			if !opts.ContinueOnError {
				return result, derr
			}
			if firstErr == nil {
				firstErr = derr
			}
			continue
		}
		result.Last = val
		ev.emit(TraceStmtEnd, &stmtSpan, nil)
		ev.log.WithField("stmt", i).Tracef("statement -> %s", Describe(val))
	}
	return result, firstErr
}

// asDiagError returns err as a *diagnostics.Error, giving it span when
// it has none.
func asDiagError(err error, span *diagnostics.Span) *diagnostics.Error {
	var de *diagnostics.Error
	if !errors.As(err, &de) {
		de = diagnostics.Errorf(diagnostics.EInit, nil, "%v", err)
	}
	return de.WithSpan(span)
}

func (ev *evaluator) execStmt(stmt ast.Stmt, env *Env) (Value, error) {
	switch s := stmt.(type) {
	case *ast.AssignStmt:
		want := AnyType
		if s.Type != nil {
			t, err := ResolveType(s.Type, env.Types())
			if err != nil {
				return nil, err
			}
			want = t
		}
		val, err := ev.eval(s.Value, want, env)
		if err != nil {
			return nil, err
		}
		if s.Type != nil {
			env.DefineAs(s.Name, want, val)
		} else {
			env.Define(s.Name, val)
		}
		return val, nil
	case *ast.ExprStmt:
		return ev.eval(s.Expr, AnyType, env)
	}
	return nil, fmt.Errorf("unsupported statement %s", stmt.Kind())
}

// eval evaluates expr in env, coercing its value to want.
func (ev *evaluator) eval(expr ast.Expr, want Type, env *Env) (Value, error) {
	span := expr.NodeSpan()
	var v Value
	switch e := expr.(type) {
	case *ast.IntLiteral:
		v = Int{Value: e.Value}
	case *ast.FloatLiteral:
		v = Double{Value: e.Value}
	case *ast.StrLiteral:
		v = String{Value: e.Value}
	case *ast.BoolLiteral:
		v = Bool{Value: e.Value}
	case *ast.NullLiteral:
		v = Null{}
	case *ast.VarRef:
		val, err := env.Lookup(e.Name, want)
		if err != nil {
			return nil, asDiagError(err, &span)
		}
		return val, nil
	case *ast.ListExpr:
		return ev.evalList(e, want, env)
	case *ast.ConstructExpr:
		return ev.evalConstruct(e, want, env)
	default:
		return nil, diagnostics.Errorf(diagnostics.EParse, &span, "unsupported expression %s", expr.Kind())
	}
	c, err := Coerce(v, want, env.Types())
	if err != nil {
		return nil, asDiagError(err, &span)
	}
	return c, nil
}

func (ev *evaluator) evalList(e *ast.ListExpr, want Type, env *Env) (Value, error) {
	span := e.Span
	var elem Type
	switch want.Kind {
	case KindAny:
		elem = AnyType
	case KindList:
		elem = want.ElemType()
	default:
		return nil, diagnostics.Errorf(diagnostics.EType, &span, "cannot use a list as %s", want)
	}

	items := make([]Value, len(e.Elements))
	for i, el := range e.Elements {
		v, err := ev.eval(el, elem, env)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	if elem.Kind != KindAny {
		return List{Elem: elem, Items: items}, nil
	}

	// Untyped list: infer the element type from the items.
	u, ok := Unify(items)
	if !ok {
		return nil, diagnostics.Errorf(diagnostics.EType, &span, "list elements have no common type").
			WithHint("declare the list type, e.g. Animal[] v = {...};")
	}
	c, err := Coerce(List{Elem: AnyType, Items: items}, ListOf(u), env.Types())
	if err != nil {
		return nil, asDiagError(err, &span)
	}
	return c, nil
}

func (ev *evaluator) evalConstruct(e *ast.ConstructExpr, want Type, env *Env) (Value, error) {
	span := e.Span
	if want.Kind != KindAny && want.Kind != KindObject {
		return nil, diagnostics.Errorf(diagnostics.EType, &span, "cannot use construction of %s as %s", e.TypeName, want)
	}
	if ev.opts.Catalog == nil {
		return nil, diagnostics.Errorf(diagnostics.EUnknownType, &span, "unknown type '%s': no types are registered", e.TypeName)
	}
	if err := ev.tracker.enter(&span); err != nil {
		ev.emit(TraceLimitExceeded, &span, map[string]string{"type": e.TypeName})
		return nil, err
	}
	defer ev.tracker.leave()

	log := ev.log.WithField("type", e.TypeName)
	if want.Kind == KindObject {
		log = log.WithField("interface", want.Interface)
	}
	ev.emit(TraceConstructStart, &span, map[string]string{"type": e.TypeName, "depth": fmt.Sprint(ev.tracker.Depth)})
	log.Debug("construct start")

	v, err := ev.opts.Catalog.Construct(e, want, env, ev.eval)
	if err != nil {
		return nil, asDiagError(err, &span)
	}

	ev.emit(TraceConstructEnd, &span, map[string]string{"type": e.TypeName})
	log.Debug("construct end")
	return v, nil
}
