package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/NoelToby/refr/pkg/diagnostics"
	"github.com/NoelToby/refr/pkg/evaluator"
)

// TraceSummary aggregates the events of one trace file.
type TraceSummary struct {
	RunID               string         `json:"runId"`
	TotalEvents         int            `json:"totalEvents"`
	Statements          int            `json:"statements"`
	Constructions       int            `json:"constructions"`
	ConstructionsByType map[string]int `json:"constructionsByType"`
	Errors              int            `json:"errors"`
	ErrorsByCode        map[string]int `json:"errorsByCode"`
	LimitExceeded       int            `json:"limitExceeded"`
	StartTime           string         `json:"startTime,omitempty"`
	EndTime             string         `json:"endTime,omitempty"`
	DurationMs          float64        `json:"durationMs"`
}

func (a *App) cmdTrace(args []string) int {
	var file string
	textOutput := false
	for _, arg := range args {
		switch arg {
		case "--text":
			textOutput = true
		case "--json":
			textOutput = false
		default:
			if !strings.HasPrefix(arg, "-") {
				file = arg
			}
		}
	}
	if file == "" {
		fmt.Fprintln(a.Stderr, "usage: infact trace <file.jsonl> [--json|--text]")
		return ExitUsage
	}

	f, err := os.Open(file)
	if err != nil {
		diag := diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, "")
		fmt.Fprintln(a.Stderr, diagnostics.FormatDiagnostics([]diagnostics.Diagnostic{diag}, false))
		return ExitUsage
	}
	defer f.Close()

	summary := SummarizeTrace(f)
	if textOutput {
		printTraceSummaryText(a.Stdout, summary)
		return ExitOK
	}
	b, _ := json.Marshal(summary)
	fmt.Fprintln(a.Stdout, string(b))
	return ExitOK
}

// SummarizeTrace reads JSON-lines trace events from r. Lines that are not
// trace events are skipped.
func SummarizeTrace(r io.Reader) *TraceSummary {
	summary := &TraceSummary{
		ConstructionsByType: make(map[string]int),
		ErrorsByCode:        make(map[string]int),
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event evaluator.TraceEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil || event.Event == "" {
			continue
		}

		summary.TotalEvents++
		if summary.RunID == "" {
			summary.RunID = event.RunID
		}

		switch event.Event {
		case evaluator.TraceRunStart:
			if summary.StartTime == "" {
				summary.StartTime = event.Timestamp
			}
		case evaluator.TraceRunEnd:
			summary.EndTime = event.Timestamp
		case evaluator.TraceStmtStart:
			summary.Statements++
		case evaluator.TraceConstructStart:
			summary.Constructions++
			if name := event.Data["type"]; name != "" {
				summary.ConstructionsByType[name]++
			}
		case evaluator.TraceError:
			summary.Errors++
			if code := event.Data["code"]; code != "" {
				summary.ErrorsByCode[code]++
			}
		case evaluator.TraceLimitExceeded:
			summary.LimitExceeded++
		}
	}

	if summary.StartTime != "" && summary.EndTime != "" {
		start, err1 := time.Parse(time.RFC3339Nano, summary.StartTime)
		end, err2 := time.Parse(time.RFC3339Nano, summary.EndTime)
		if err1 == nil && err2 == nil {
			summary.DurationMs = float64(end.Sub(start).Milliseconds())
		}
	}
	return summary
}

func printTraceSummaryText(w io.Writer, s *TraceSummary) {
	fmt.Fprintf(w, "Run: %s\n", s.RunID)
	fmt.Fprintf(w, "Events: %d\n", s.TotalEvents)
	fmt.Fprintf(w, "Statements: %d\n", s.Statements)
	fmt.Fprintf(w, "Constructions: %d\n", s.Constructions)
	for _, name := range sortedKeys(s.ConstructionsByType) {
		fmt.Fprintf(w, "  %s: %d\n", name, s.ConstructionsByType[name])
	}
	fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	for _, code := range sortedKeys(s.ErrorsByCode) {
		fmt.Fprintf(w, "  %s: %d\n", code, s.ErrorsByCode[code])
	}
	if s.LimitExceeded > 0 {
		fmt.Fprintf(w, "Limits exceeded: %d\n", s.LimitExceeded)
	}
	if s.DurationMs > 0 {
		fmt.Fprintf(w, "Duration: %.0fms\n", s.DurationMs)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
