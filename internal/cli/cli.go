// Package cli implements the infact command-line driver.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NoelToby/refr/pkg/config"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
	"github.com/NoelToby/refr/pkg/example"
	"github.com/NoelToby/refr/pkg/factory"
	"github.com/NoelToby/refr/pkg/formatter"
	"github.com/NoelToby/refr/pkg/help"
	"github.com/NoelToby/refr/pkg/interpreter"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitUsage       = 1 // bad arguments or unreadable input
	ExitInvalid     = 2 // lexical, parse or validation errors
	ExitUnknownType = 3 // unresolvable type or registration conflict
	ExitEval        = 4 // any other evaluation error
)

const usage = `usage: infact <command> [options]
commands: run, check, fmt, repl, types, trace, help, config`

// App is one driver invocation.
type App struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Config is used as is when set. Otherwise Run loads it from the
	// working directory and the user's home.
	Config *config.Config
	// Catalog defaults to a catalog with the example module installed.
	Catalog *factory.Catalog
	// NewRunID defaults to random UUIDs.
	NewRunID func() string
}

// New returns an App bound to the process's standard streams.
func New() *App {
	return &App{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes the command named by args[0] and returns the exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(a.Stderr, usage)
		return ExitUsage
	}
	cfg, err := a.config()
	if err != nil {
		fmt.Fprintf(a.Stderr, "config: %s\n", err)
		return ExitUsage
	}

	switch args[0] {
	case "run":
		return a.cmdRun(ctx, cfg, args[1:])
	case "check":
		return a.cmdCheck(cfg, args[1:])
	case "fmt":
		return a.cmdFmt(args[1:])
	case "repl":
		return a.cmdRepl(ctx, cfg, args[1:])
	case "types":
		return a.cmdTypes(args[1:])
	case "trace":
		return a.cmdTrace(args[1:])
	case "help", "--help", "-h":
		return a.cmdHelp(args[1:])
	case "config":
		return a.cmdConfig(cfg)
	}
	fmt.Fprintf(a.Stderr, "Unknown command: %s\n%s\n", args[0], usage)
	return ExitUsage
}

func (a *App) config() (*config.Config, error) {
	if a.Config != nil {
		cfg := *a.Config
		return &cfg, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd)
}

func (a *App) catalog() (*factory.Catalog, error) {
	if a.Catalog == nil {
		c := factory.NewCatalog()
		if err := example.Install(c); err != nil {
			return nil, err
		}
		a.Catalog = c
	}
	return a.Catalog, nil
}

func (a *App) runID() string {
	if a.NewRunID != nil {
		return a.NewRunID()
	}
	return uuid.NewString()
}

// logger writes text-formatted entries to the App's stderr.
func (a *App) logger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(a.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return log
}

// interpreter builds an interpreter configured by cfg. Options in extra
// are applied last.
func (a *App) interpreter(cfg *config.Config, extra ...interpreter.Option) (*interpreter.Interpreter, *logrus.Logger, error) {
	c, err := a.catalog()
	if err != nil {
		return nil, nil, err
	}
	log := a.logger()
	opts := []interpreter.Option{
		interpreter.WithCatalog(c),
		interpreter.WithLogger(log),
		interpreter.WithRunID(a.runID()),
	}
	opts = append(opts, cfg.Options()...)
	opts = append(opts, extra...)
	return interpreter.New(opts...), log, nil
}

// ExitCode maps a diagnostic code to the process exit code.
func ExitCode(code string) int {
	switch code {
	case diagnostics.EIO:
		return ExitUsage
	case diagnostics.ELex, diagnostics.EParse:
		return ExitInvalid
	case diagnostics.EUnknownType, diagnostics.EAmbiguousType,
		diagnostics.EUnknownInterface, diagnostics.EDupRegistration:
		return ExitUnknownType
	}
	return ExitEval
}

// EvalExitCode maps an Eval failure to an exit code. Anything rejected
// before evaluation started exits with ExitInvalid.
func EvalExitCode(err error) int {
	var de *interpreter.DiagnosticError
	if errors.As(err, &de) && de.Static {
		return ExitInvalid
	}
	diags := interpreter.Diagnostics(err)
	if len(diags) == 0 {
		return ExitEval
	}
	return ExitCode(diags[0].Code)
}

// report writes diags to stderr, as caret snippets when pretty and as a
// JSON array otherwise.
func (a *App) report(diags []diagnostics.Diagnostic, source string, pretty bool) {
	if !pretty {
		fmt.Fprintln(a.Stderr, diagnostics.FormatDiagnostics(diags, false))
		return
	}
	for i, d := range diags {
		if i > 0 {
			fmt.Fprintln(a.Stderr)
		}
		fmt.Fprintln(a.Stderr, diagnostics.Snippet(source, d))
	}
}

type runFlags struct {
	file      string
	json      bool
	tracePath string
}

// parseRunFlags applies the run flags to cfg.
func (a *App) parseRunFlags(args []string, cfg *config.Config) (*runFlags, bool) {
	f := &runFlags{}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--pretty":
			cfg.Pretty = true
		case "--json":
			f.json = true
			cfg.Pretty = false
		case "--lenient":
			cfg.UnknownFields = factory.UnknownFieldIgnore
		case "--continue":
			cfg.ContinueOnError = true
		case "--trace", "-v", "--max-depth", "--max-constructions":
			if i+1 >= len(args) {
				fmt.Fprintf(a.Stderr, "%s needs a value\n", arg)
				return nil, false
			}
			i++
			if arg == "--trace" {
				f.tracePath = args[i]
				continue
			}
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 0 {
				fmt.Fprintf(a.Stderr, "%s: invalid value %q\n", arg, args[i])
				return nil, false
			}
			switch arg {
			case "-v":
				cfg.Verbosity = n
			case "--max-depth":
				cfg.MaxDepth = n
			case "--max-constructions":
				cfg.MaxConstructions = n
			}
		default:
			if arg != "-" && strings.HasPrefix(arg, "-") {
				fmt.Fprintf(a.Stderr, "unknown flag: %s\n", arg)
				return nil, false
			}
			f.file = arg
		}
	}
	return f, f.file != ""
}

func (a *App) cmdRun(ctx context.Context, cfg *config.Config, args []string) int {
	f, ok := a.parseRunFlags(args, cfg)
	if !ok {
		fmt.Fprintln(a.Stderr, "usage: infact run <file|-> [--pretty] [--json] [--lenient] [--continue] [--trace <out.jsonl>] [-v N]")
		return ExitUsage
	}

	source, filename, code := a.readSource(f.file, cfg.Pretty)
	if code != ExitOK {
		return code
	}

	var extra []interpreter.Option
	if f.tracePath != "" {
		out, err := os.Create(f.tracePath)
		if err != nil {
			a.report([]diagnostics.Diagnostic{diagnostics.MakeDiag(diagnostics.EIO,
				fmt.Sprintf("cannot write trace: %s", err), nil, "")}, "", cfg.Pretty)
			return ExitUsage
		}
		defer out.Close()
		enc := json.NewEncoder(out)
		extra = append(extra, interpreter.WithTrace(func(ev evaluator.TraceEvent) {
			_ = enc.Encode(ev)
		}))
	}

	in, log, err := a.interpreter(cfg, extra...)
	if err != nil {
		fmt.Fprintln(a.Stderr, err)
		return ExitCode(diagnostics.Code(err))
	}

	result, err := in.Eval(ctx, source, filename)
	if err != nil {
		a.report(interpreter.Diagnostics(err), source, cfg.Pretty)
		return EvalExitCode(err)
	}
	log.WithField("constructions", result.Constructions).Info("description evaluated")

	if f.json {
		data, err := evaluator.BindingsToJSON(in.Env().Bindings())
		if err != nil {
			fmt.Fprintf(a.Stderr, "error serializing bindings: %s\n", err)
			return ExitEval
		}
		fmt.Fprintln(a.Stdout, string(data))
		return ExitOK
	}
	if err := in.PrintEnv(a.Stdout); err != nil {
		fmt.Fprintf(a.Stderr, "error writing bindings: %s\n", err)
		return ExitUsage
	}
	return ExitOK
}

func (a *App) cmdCheck(cfg *config.Config, args []string) int {
	var file string
	for _, arg := range args {
		switch arg {
		case "--pretty":
			cfg.Pretty = true
		case "--json":
			cfg.Pretty = false
		default:
			if arg == "-" || !strings.HasPrefix(arg, "-") {
				file = arg
			}
		}
	}
	if file == "" {
		fmt.Fprintln(a.Stderr, "usage: infact check <file|-> [--pretty] [--json]")
		return ExitUsage
	}

	source, filename, code := a.readSource(file, cfg.Pretty)
	if code != ExitOK {
		return code
	}
	in, _, err := a.interpreter(cfg)
	if err != nil {
		fmt.Fprintln(a.Stderr, err)
		return ExitCode(diagnostics.Code(err))
	}
	if diags := in.Check(source, filename); len(diags) > 0 {
		a.report(diags, source, cfg.Pretty)
		return ExitInvalid
	}

	if cfg.Pretty {
		fmt.Fprintln(a.Stdout, "No errors found.")
	} else {
		fmt.Fprintln(a.Stdout, "[]")
	}
	return ExitOK
}

func (a *App) cmdFmt(args []string) int {
	var file string
	write := false
	for _, arg := range args {
		switch arg {
		case "--write":
			write = true
		default:
			if !strings.HasPrefix(arg, "-") {
				file = arg
			}
		}
	}
	if file == "" {
		fmt.Fprintln(a.Stderr, "usage: infact fmt <file> [--write]")
		return ExitUsage
	}

	source, _, code := a.readSource(file, false)
	if code != ExitOK {
		return code
	}
	formatted, err := interpreter.New().Format(source, file)
	if err != nil {
		diags := interpreter.Diagnostics(err)
		a.report(diags, source, false)
		return ExitInvalid
	}

	if formatter.HasComments(source) {
		fmt.Fprintln(a.Stderr, "warning: comments are not preserved by the formatter")
	}

	if write {
		if err := os.WriteFile(file, []byte(formatted), 0o644); err != nil {
			fmt.Fprintf(a.Stderr, "error writing file: %s\n", err)
			return ExitUsage
		}
		return ExitOK
	}
	fmt.Fprint(a.Stdout, formatted)
	return ExitOK
}

func (a *App) cmdTypes(args []string) int {
	brief := false
	for _, arg := range args {
		if arg == "--brief" {
			brief = true
		}
	}
	c, err := a.catalog()
	if err != nil {
		fmt.Fprintln(a.Stderr, err)
		return ExitUnknownType
	}
	if brief {
		fmt.Fprint(a.Stdout, help.TypeIndex(c))
		return ExitOK
	}
	if err := interpreter.PrintCatalog(a.Stdout, c); err != nil {
		fmt.Fprintln(a.Stderr, err)
		return ExitUsage
	}
	return ExitOK
}

func (a *App) cmdHelp(args []string) int {
	topic := ""
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			topic = arg
		}
	}
	if topic == "" {
		fmt.Fprint(a.Stdout, help.QUICKREF)
		return ExitOK
	}

	_, content, err := help.MatchTopic(topic)
	if err != nil {
		fmt.Fprintf(a.Stderr, "%s\nAvailable topics: %s\n", err, strings.Join(help.TopicList, ", "))
		return ExitUsage
	}
	fmt.Fprint(a.Stdout, content)
	return ExitOK
}

func (a *App) cmdConfig(cfg *config.Config) int {
	for _, src := range cfg.Sources {
		fmt.Fprintf(a.Stdout, "# from %s\n", src)
	}
	data, err := cfg.YAML()
	if err != nil {
		fmt.Fprintf(a.Stderr, "config: %s\n", err)
		return ExitUsage
	}
	fmt.Fprint(a.Stdout, string(data))
	return ExitOK
}

// readSource reads file, or stdin when file is "-".
func (a *App) readSource(file string, pretty bool) (string, string, int) {
	if file == "-" {
		data, err := io.ReadAll(a.Stdin)
		if err != nil {
			fmt.Fprintf(a.Stderr, "error reading stdin: %s\n", err)
			return "", "", ExitUsage
		}
		return string(data), "<stdin>", ExitOK
	}

	source, err := os.ReadFile(file)
	if err != nil {
		diag := diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, "")
		a.report([]diagnostics.Diagnostic{diag}, "", pretty)
		return "", "", ExitUsage
	}
	return string(source), file, ExitOK
}
