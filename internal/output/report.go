package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/figscale/loadgen/internal/metrics"
	"github.com/figscale/loadgen/internal/threshold"
)

// Format selects how a report is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// RunSettings is the part of the configuration echoed back in the report.
type RunSettings struct {
	Target      string  `json:"target" yaml:"target"`
	Concurrency int     `json:"concurrency" yaml:"concurrency"`
	Duration    string  `json:"duration" yaml:"duration"`
	ReadRatio   float64 `json:"read_ratio" yaml:"read_ratio"`
	ThinkTime   string  `json:"think_time" yaml:"think_time"`
	Rate        int     `json:"rate,omitempty" yaml:"rate,omitempty"`
	Seed        int64   `json:"seed" yaml:"seed"`
}

// Report is the end-of-run summary.
type Report struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time          `json:"started_at" yaml:"started_at"`
	Settings   RunSettings        `json:"settings" yaml:"settings"`
	Stats      metrics.Stats      `json:"results" yaml:"results"`
	Thresholds []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Passed     bool               `json:"passed" yaml:"passed"`
}

// NewReport stamps a fresh run id on the results.
func NewReport(started time.Time, settings RunSettings, stats metrics.Stats, results []threshold.Result) Report {
	return Report{
		RunID:      ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String(),
		StartedAt:  started.UTC(),
		Settings:   settings,
		Stats:      stats,
		Thresholds: results,
		Passed:     threshold.AllPassed(results),
	}
}

// Write renders r in the requested format.
func Write(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatYAML:
		return WriteYAML(w, r)
	case FormatText, "":
		return WriteText(w, r)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteJSON outputs the report as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func WriteYAML(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

type textStyles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	pass    lipgloss.Style
	fail    lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	re := lipgloss.NewRenderer(w)
	return textStyles{
		heading: re.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		label:   re.NewStyle().Width(26),
		pass:    re.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
		fail:    re.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
	}
}

// WriteText outputs a human-readable summary. Styling is dropped when w is
// not a terminal.
func WriteText(w io.Writer, r Report) error {
	st := newTextStyles(w)
	s := r.Stats
	var b strings.Builder

	row := func(label, format string, args ...interface{}) {
		b.WriteString(st.label.Render(label))
		fmt.Fprintf(&b, format+"\n", args...)
	}

	b.WriteString("\n" + st.heading.Render("=== Load Test Results ===") + "\n")
	row("Run ID:", "%s", r.RunID)
	row("Target:", "%s", r.Settings.Target)
	row("Concurrency:", "%d", r.Settings.Concurrency)
	row("Duration:", "%.2f seconds", s.Duration.Seconds())
	row("Total Requests:", "%d", s.Total)
	row("Successful:", "%d", s.Successes)
	row("Failed:", "%d", s.Failures)
	row("Read Operations:", "%d", s.ReadOperations)
	row("Write Operations:", "%d", s.WriteOperations)
	row("QPS:", "%.2f", s.RequestsPerSec)
	row("Average Latency:", "%.2fms", s.MeanLatencyMs)
	row("Success Rate:", "%.2f%%", s.SuccessRatePct)

	b.WriteString("\n" + st.heading.Render("Latency") + "\n")
	row("  Min:", "%.2fms", s.MinLatencyMs)
	row("  P50:", "%.2fms", s.P50LatencyMs)
	row("  P90:", "%.2fms", s.P90LatencyMs)
	row("  P99:", "%.2fms", s.P99LatencyMs)
	row("  Max:", "%.2fms", s.MaxLatencyMs)

	if len(s.StatusCodes) > 0 {
		b.WriteString("\n" + st.heading.Render("Status Codes") + "\n")
		for _, bucket := range metrics.FlattenStatusBuckets(s.StatusCodes) {
			row("  "+bucket.Code+":", "%d", bucket.Count)
		}
	}
	if len(s.Errors) > 0 {
		b.WriteString("\n" + st.heading.Render("Errors") + "\n")
		for _, kind := range sortedKeys(s.Errors) {
			row("  "+kind+":", "%d", s.Errors[kind])
		}
	}
	if len(s.Recipes) > 0 {
		b.WriteString("\n" + st.heading.Render("Recipes") + "\n")
		for _, name := range sortedKeys(s.Recipes) {
			rs := s.Recipes[name]
			row("  "+name+":", "runs=%d aborted=%d", rs.Runs, rs.Aborted)
		}
	}

	if len(r.Thresholds) > 0 {
		b.WriteString("\n" + st.heading.Render("Thresholds") + "\n")
		for _, res := range r.Thresholds {
			style := st.pass
			if !res.Pass {
				style = st.fail
			}
			b.WriteString("  " + style.Render(res.Message) + "\n")
		}
		verdict := st.pass.Render("PASSED")
		if !r.Passed {
			verdict = st.fail.Render("FAILED")
		}
		b.WriteString("\n" + verdict + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
