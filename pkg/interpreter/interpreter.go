// Package interpreter provides the top-level description interpreter:
// it parses, validates and evaluates descriptions against a Catalog and
// keeps the resulting bindings between calls.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NoelToby/refr/pkg/ast"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
	"github.com/NoelToby/refr/pkg/factory"
	"github.com/NoelToby/refr/pkg/formatter"
	"github.com/NoelToby/refr/pkg/parser"
	"github.com/NoelToby/refr/pkg/validator"
)

// Result holds the outcome of one evaluation.
type Result struct {
	// Value is the value of the last statement evaluated.
	Value evaluator.Value
	// Constructions counts the objects built.
	Constructions int
}

// Interpreter wires together all components for description evaluation.
// An Interpreter is not safe for concurrent use; interpreters sharing
// one Catalog may run on separate goroutines.
type Interpreter struct {
	catalog         *factory.Catalog
	env             *evaluator.Env
	log             *logrus.Logger
	verbosity       *int
	unknownFields   factory.UnknownFieldPolicy
	limits          evaluator.Limits
	trace           func(event evaluator.TraceEvent)
	runID           string
	continueOnError bool
}

// Option is a functional option for configuring the Interpreter.
type Option func(*Interpreter)

// WithCatalog sets the catalog constructions are resolved in.
func WithCatalog(c *factory.Catalog) Option {
	return func(in *Interpreter) {
		in.catalog = c
	}
}

// WithLogger sets the logger. The default logger discards its output.
func WithLogger(l *logrus.Logger) Option {
	return func(in *Interpreter) {
		in.log = l
	}
}

// WithVerbosity sets the logger's level: 0 warn, 1 info, 2 debug, 3 trace.
func WithVerbosity(v int) Option {
	return func(in *Interpreter) {
		in.verbosity = &v
	}
}

// WithUnknownFields sets the policy for member names a type does not declare.
func WithUnknownFields(p factory.UnknownFieldPolicy) Option {
	return func(in *Interpreter) {
		in.unknownFields = p
	}
}

// WithLimits sets the evaluation limits.
func WithLimits(l evaluator.Limits) Option {
	return func(in *Interpreter) {
		in.limits = l
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(event evaluator.TraceEvent)) Option {
	return func(in *Interpreter) {
		in.trace = fn
	}
}

// WithRunID sets the run ID for trace events and log entries.
func WithRunID(id string) Option {
	return func(in *Interpreter) {
		in.runID = id
	}
}

// WithContinueOnError keeps evaluating after a failing statement and
// reports every failure at the end.
func WithContinueOnError() Option {
	return func(in *Interpreter) {
		in.continueOnError = true
	}
}

// VerbosityLevel maps a verbosity count to a logrus level.
func VerbosityLevel(v int) logrus.Level {
	switch {
	case v <= 0:
		return logrus.WarnLevel
	case v == 1:
		return logrus.InfoLevel
	case v == 2:
		return logrus.DebugLevel
	}
	return logrus.TraceLevel
}

// New creates a new Interpreter with the given options.
// By default the catalog is empty and logs are discarded.
func New(opts ...Option) *Interpreter {
	log := logrus.New()
	log.SetOutput(io.Discard)
	in := &Interpreter{
		catalog: factory.NewCatalog(),
		log:     log,
		runID:   "cli",
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.verbosity != nil {
		in.log.SetLevel(VerbosityLevel(*in.verbosity))
	}
	in.env = evaluator.NewGlobalEnv(in.builder())
	return in
}

func (in *Interpreter) builder() *factory.Builder {
	return in.catalog.Builder(factory.BuildOptions{
		UnknownFields: in.unknownFields,
		Logger:        in.log.WithField("run_id", in.runID),
	})
}

// Catalog returns the catalog constructions are resolved in.
func (in *Interpreter) Catalog() *factory.Catalog { return in.catalog }

// Env returns the global environment.
func (in *Interpreter) Env() *evaluator.Env { return in.env }

// Reset discards every binding.
func (in *Interpreter) Reset() {
	in.env = evaluator.NewGlobalEnv(in.builder())
}

// Eval parses, validates and evaluates a description. Bindings persist
// in the interpreter's environment across calls. A statement that fails
// binds nothing.
func (in *Interpreter) Eval(ctx context.Context, source, filename string) (*Result, error) {
	program, diags := parser.Parse(source, filename)
	return in.evalProgram(ctx, program, diags, source, filename)
}

// EvalReader evaluates a description read lazily from r.
func (in *Interpreter) EvalReader(ctx context.Context, r io.Reader, filename string) (*Result, error) {
	var src strings.Builder
	rr := &recordingReader{r: r, w: &src}
	program, diags := parser.ParseReader(rr, filename)
	if rr.err != nil {
		return nil, diagnostics.Errorf(diagnostics.EIO, nil, "reading %s: %v", filename, rr.err)
	}
	return in.evalProgram(ctx, program, diags, src.String(), filename)
}

// EvalFile evaluates the description in the named file.
func (in *Interpreter) EvalFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diagnostics.Errorf(diagnostics.EIO, nil, "reading %s: %v", path, err)
	}
	defer f.Close()
	return in.EvalReader(ctx, f, path)
}

func (in *Interpreter) evalProgram(ctx context.Context, program *ast.Program, diags []diagnostics.Diagnostic, source, filename string) (*Result, error) {
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags, Source: source, Static: true}
	}
	if vDiags := validator.Validate(program, in.env.Names()...); len(vDiags) > 0 {
		return nil, &DiagnosticError{Diagnostics: vDiags, Source: source, Static: true}
	}

	in.log.WithField("run_id", in.runID).WithField("file", filename).Info("evaluating description")
	result, err := evaluator.Execute(ctx, program, evaluator.ExecOptions{
		Catalog:         in.builder(),
		Env:             in.env,
		Limits:          in.limits,
		Logger:          in.log,
		Trace:           in.trace,
		RunID:           in.runID,
		ContinueOnError: in.continueOnError,
	})
	res := &Result{}
	if result != nil {
		res.Value = result.Last
		res.Constructions = result.Tracker.Constructions
	}
	if err != nil {
		if result != nil && len(result.Diagnostics) > 1 {
			return res, &DiagnosticError{Diagnostics: result.Diagnostics, Source: source}
		}
		return res, err
	}
	return res, nil
}

// recordingReader copies what it reads into w and keeps the first read
// error other than io.EOF.
type recordingReader struct {
	r   io.Reader
	w   io.Writer
	err error
}

func (rr *recordingReader) Read(p []byte) (int, error) {
	n, err := rr.r.Read(p)
	_, _ = rr.w.Write(p[:n])
	if err != nil && !errors.Is(err, io.EOF) && rr.err == nil {
		rr.err = err
	}
	return n, err
}

// Check parses and validates a description without evaluating it.
// Names bound by earlier evaluations count as defined.
func (in *Interpreter) Check(source, filename string) []diagnostics.Diagnostic {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return diags
	}
	return validator.Validate(program, in.env.Names()...)
}

// Format parses and formats a description.
func (in *Interpreter) Format(source, filename string) (string, error) {
	program, diags := parser.Parse(source, filename)
	if len(diags) > 0 {
		return "", &DiagnosticError{Diagnostics: diags, Source: source, Static: true}
	}
	return formatter.Format(program), nil
}

// Lookup returns the value bound to name.
func (in *Interpreter) Lookup(name string) (evaluator.Value, bool) {
	return in.env.Get(name)
}

// GetBool returns the bool bound to name.
func (in *Interpreter) GetBool(name string) (bool, error) {
	return in.env.LookupBool(name)
}

// GetInt returns the int bound to name.
func (in *Interpreter) GetInt(name string) (int64, error) {
	return in.env.LookupInt(name)
}

// GetDouble returns the double bound to name, widening ints.
func (in *Interpreter) GetDouble(name string) (float64, error) {
	return in.env.LookupDouble(name)
}

// GetString returns the string bound to name.
func (in *Interpreter) GetString(name string) (string, error) {
	return in.env.LookupString(name)
}

// GetObject returns the object bound to name as a T. A name bound to
// nullptr yields the zero T.
func GetObject[T any](in *Interpreter, name string) (T, error) {
	var zero T
	v, ok := in.env.Get(name)
	if !ok {
		return zero, diagnostics.Errorf(diagnostics.EUnbound, nil, "unbound variable '%s'", name)
	}
	switch val := v.(type) {
	case evaluator.Null:
		return zero, nil
	case evaluator.Object:
		inst, ok := val.Instance.(T)
		if !ok {
			return zero, diagnostics.Errorf(diagnostics.EType, nil,
				"variable '%s': %s is not a %T", name, val.TypeName, &zero)
		}
		return inst, nil
	}
	return zero, diagnostics.Errorf(diagnostics.EType, nil,
		"variable '%s': %s is not an object", name, evaluator.Describe(v))
}

// GetObjects returns the list of objects bound to name as []T.
func GetObjects[T any](in *Interpreter, name string) ([]T, error) {
	v, ok := in.env.Get(name)
	if !ok {
		return nil, diagnostics.Errorf(diagnostics.EUnbound, nil, "unbound variable '%s'", name)
	}
	list, ok := v.(evaluator.List)
	if !ok {
		return nil, diagnostics.Errorf(diagnostics.EType, nil,
			"variable '%s': %s is not a list", name, evaluator.Describe(v))
	}
	out := make([]T, len(list.Items))
	for i, item := range list.Items {
		obj, ok := item.(evaluator.Object)
		if !ok {
			continue
		}
		inst, ok := obj.Instance.(T)
		if !ok {
			var zero T
			return nil, diagnostics.Errorf(diagnostics.EType, nil,
				"variable '%s': element %d (%s) is not a %T", name, i, obj.TypeName, &zero)
		}
		out[i] = inst
	}
	return out, nil
}

// PrintEnv writes the global bindings in insertion order as a description.
func (in *Interpreter) PrintEnv(w io.Writer) error {
	return in.env.Print(w)
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
	// Source is the text the diagnostics refer to, for snippets.
	Source string
	// Static is set when the diagnostics come from lexing, parsing or
	// validation, before anything was evaluated.
	Static bool
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}

// Diagnostics extracts every diagnostic carried by err.
func Diagnostics(err error) []diagnostics.Diagnostic {
	var de *DiagnosticError
	if errors.As(err, &de) {
		return de.Diagnostics
	}
	if d, ok := diagnostics.As(err); ok {
		return []diagnostics.Diagnostic{d}
	}
	if err != nil {
		return []diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EInit, err.Error(), nil, "")}
	}
	return nil
}
