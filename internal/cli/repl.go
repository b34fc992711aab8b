package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/NoelToby/refr/pkg/config"
	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
	"github.com/NoelToby/refr/pkg/help"
	"github.com/NoelToby/refr/pkg/interpreter"
	"github.com/NoelToby/refr/pkg/parser"
)

const (
	banner     = "infact " + help.Version + " - type :help for commands, :quit to exit"
	promptMain = "> "
	promptCont = "| "
	replFile   = "<repl>"
)

const replHelp = `:types   registered interfaces and types
:env     current bindings
:reset   drop every binding
:help    language quick reference
:quit    leave
`

func (a *App) cmdRepl(ctx context.Context, cfg *config.Config, _ []string) int {
	in, _, err := a.interpreter(cfg)
	if err != nil {
		fmt.Fprintln(a.Stderr, err)
		return ExitCode(diagnostics.Code(err))
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if cfg.HistoryFile != "" {
		if f, err := os.Open(cfg.HistoryFile); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
		defer func() {
			_ = os.MkdirAll(filepath.Dir(cfg.HistoryFile), 0o755)
			if f, err := os.Create(cfg.HistoryFile); err == nil {
				_, _ = ln.WriteHistory(f)
				_ = f.Close()
			}
		}()
	}

	fmt.Fprintln(a.Stdout, banner)
	for {
		src, ok := readStatement(ln)
		if !ok {
			fmt.Fprintln(a.Stdout)
			return ExitOK
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))
		if a.replLine(ctx, in, src) {
			return ExitOK
		}
	}
}

// replLine evaluates one REPL entry and reports whether the session ends.
func (a *App) replLine(ctx context.Context, in *interpreter.Interpreter, src string) (quit bool) {
	line := strings.TrimSpace(src)
	if strings.HasPrefix(line, ":") {
		switch strings.ToLower(line) {
		case ":quit", ":q":
			return true
		case ":types":
			_ = in.PrintFactories(a.Stdout)
		case ":env":
			_ = in.PrintEnv(a.Stdout)
		case ":reset":
			in.Reset()
		case ":help":
			fmt.Fprint(a.Stdout, help.QUICKREF)
			fmt.Fprint(a.Stdout, "\n"+replHelp)
		default:
			fmt.Fprintf(a.Stdout, "unknown command %s\n%s", line, replHelp)
		}
		return false
	}

	res, err := in.Eval(ctx, src, replFile)
	if err != nil {
		a.report(interpreter.Diagnostics(err), src, true)
		return false
	}
	if res.Value != nil {
		fmt.Fprintln(a.Stdout, evaluator.Describe(res.Value))
	}
	return false
}

// readStatement prompts until the input parses or fails for a reason
// other than ending early.
func readStatement(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, diags := parser.Parse(src, replFile); parser.Incomplete(diags) {
			continue
		}
		return src, true
	}
}
