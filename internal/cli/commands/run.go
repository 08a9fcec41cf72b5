package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/pipeline"
)

// RunInput executes the full pipeline for the input file at path and prints
// the energy summary.
func RunInput(cmd *cobra.Command, path string) error {
	res, err := NewRunner(cmd).Run(cmd.Context(), config.Source{Path: path})
	if err != nil {
		return err
	}
	return renderResult(cmd.OutOrStdout(), res)
}

func renderResult(w io.Writer, res *pipeline.Result) error {
	p := res.Physics
	status := "converged"
	if !p.Converged {
		status = "not converged"
	}
	if _, err := fmt.Fprintf(w, "%s: %s after %d iterations (residual %.3e)\n",
		res.Mode, status, p.Iterations, p.Residual); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(pipeline.TableStyle(w))
	t.AppendHeader(table.Row{"Term", "Value"})
	for _, term := range p.Energy {
		t.AppendRow(table.Row{term.Name, fmt.Sprintf("%.10f", term.Value)})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"NCond", fmt.Sprintf("%.10f", p.Ncond)})
	t.AppendRow(table.Row{"Sz", fmt.Sprintf("%.10f", p.Sz)})
	t.Render()

	if res.RunID != "" {
		_, _ = fmt.Fprintf(w, "Recorded run %s\n", res.RunID)
	}
	return nil
}
