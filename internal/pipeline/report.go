package pipeline

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/hwave/internal/config"
)

// Report formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
)

// ReportEntry is one parameter in a report.
type ReportEntry struct {
	Key    string `yaml:"key"`
	Value  any    `yaml:"value"`
	Source string `yaml:"source"`
}

// Report is the validated state of a prepared run.
type Report struct {
	Mode     string        `yaml:"mode"`
	FlagFock any           `yaml:"flag_fock"`
	Output   string        `yaml:"output"`
	Settings []ReportEntry `yaml:"settings"`
	Params   []ReportEntry `yaml:"params"`
}

// settings lists the configuration keys shown in a report with the layer
// that supplied each.
func settings(cfg *config.Run) []ReportEntry {
	values := []struct {
		key   string
		value any
	}{
		{"mode.mode", cfg.Mode.Mode},
		{"mode.flag_fock", cfg.Mode.FlagFock},
		{"log.print_level", cfg.Log.PrintLevel},
		{"log.print_step", cfg.Log.PrintStep},
		{"file.output.path_to_output", cfg.File.Output.PathToOutput},
		{"file.output.history_db", cfg.File.Output.HistoryDB},
	}
	entries := make([]ReportEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, ReportEntry{Key: v.key, Value: v.value, Source: string(cfg.Provenance.Of(v.key))})
	}
	return entries
}

// NewReport summarizes p.
func NewReport(p *Prepared) Report {
	rep := Report{
		Mode:     p.Mode,
		FlagFock: p.Config.Mode.FlagFock,
		Output:   p.Config.OutputDir(),
		Settings: settings(p.Config),
	}
	for _, key := range p.Params.Keys() {
		v, _ := p.Params.Get(key)
		src, _ := p.Params.Source(key)
		rep.Params = append(rep.Params, ReportEntry{Key: key, Value: v, Source: string(src)})
	}
	return rep
}

// WriteReport renders rep to w in the given format.
func WriteReport(w io.Writer, rep Report, format string) error {
	switch format {
	case "", FormatTable:
		return writeTable(w, rep)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (expected %s or %s)", format, FormatTable, FormatYAML)
	}
}

func writeTable(w io.Writer, rep Report) error {
	if _, err := fmt.Fprintf(w, "mode: %s  flag_fock: %v  output: %s\n", rep.Mode, rep.FlagFock, rep.Output); err != nil {
		return err
	}

	renderEntries(w, "Setting", rep.Settings)
	renderEntries(w, "Key", rep.Params)
	return nil
}

func renderEntries(w io.Writer, title string, entries []ReportEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(TableStyle(w))
	t.AppendHeader(table.Row{title, "Value", "Source"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Key, formatValue(e.Value), e.Source})
	}
	t.Render()
}

// TableStyle picks rounded borders for terminals and plain light borders
// for files and pipes.
func TableStyle(w io.Writer) table.Style {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return table.StyleRounded
	}
	return table.StyleLight
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
