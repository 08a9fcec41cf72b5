package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/pipeline"
	"github.com/leapstack-labs/hwave/internal/state"
)

// ErrNoHistoryDB is returned by history when no database is given.
var ErrNoHistoryDB = errors.New("no history database: pass --history-db or set HWAVE_FILE__OUTPUT__HISTORY_DB")

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `Show the runs recorded in the history database, most recent first.

Runs are recorded when --history-db (or file.output.history_db) is set.`,
		Example: `  hwave history --history-db runs.db
  hwave history --history-db runs.db --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	path, _ := cmd.Flags().GetString("history-db")
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "FILE__OUTPUT__HISTORY_DB")
	}
	if path == "" {
		return ErrNoHistoryDB
	}

	store := state.NewSQLiteStore(GetLogger(cmd.Context()))
	if err := store.Open(cmd.Context(), path); err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	renderRuns(w, runs)

	version, err := store.MigrationVersion(cmd.Context())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "Ledger %s (schema version %d)\n", store.Path(), version)
	return nil
}

func renderRuns(w io.Writer, runs []*state.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(pipeline.TableStyle(w))
	t.AppendHeader(table.Row{"ID", "Mode", "Status", "Started", "Iterations", "Converged", "Energy", "Input"})
	for _, r := range runs {
		energy := "-"
		if r.Energy != nil {
			energy = strconv.FormatFloat(*r.Energy, 'f', 8, 64)
		}
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		t.AppendRow(table.Row{
			id, r.Mode, string(r.Status), r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Iterations, r.Converged, energy, r.InputPath,
		})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "%d run(s)\n", len(runs))
}
