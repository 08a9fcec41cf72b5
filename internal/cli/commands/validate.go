package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/pipeline"
)

// watchDebounce is how long the watcher waits for writes to settle.
const watchDebounce = 100 * time.Millisecond

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	Format string
	Watch  bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <input>",
		Short: "Check an input file without solving",
		Long: `Load the configuration, read the definition files, and build and check
the parameter set. Nothing is written to the output directory.

With --watch the input file is re-validated every time it changes.`,
		Example: `  # Print the canonical parameters as a table
  hwave validate input.toml

  # Machine-readable report
  hwave validate input.toml --format yaml

  # Re-validate on every save
  hwave validate input.toml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", pipeline.FormatTable, "Report format (table|yaml)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-validate when the input file changes")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{pipeline.FormatTable, pipeline.FormatYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runValidate(cmd *cobra.Command, path string, opts *ValidateOptions) error {
	if opts.Format != pipeline.FormatTable && opts.Format != pipeline.FormatYAML {
		return fmt.Errorf("unknown format %q (expected %s or %s)", opts.Format, pipeline.FormatTable, pipeline.FormatYAML)
	}

	err := validateOnce(cmd, path, opts.Format)
	if !opts.Watch {
		return err
	}
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	logger := GetLogger(cmd.Context())
	return WatchFile(cmd.Context(), path, logger, func() {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\n--- %s changed ---\n", filepath.Base(path))
		if err := validateOnce(cmd, path, opts.Format); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

func validateOnce(cmd *cobra.Command, path, format string) error {
	p, err := NewRunner(cmd).Prepare(cmd.Context(), config.Source{Path: path})
	if err != nil {
		return err
	}
	return writeValid(cmd.OutOrStdout(), p, format)
}

func writeValid(w io.Writer, p *pipeline.Prepared, format string) error {
	if err := pipeline.WriteReport(w, pipeline.NewReport(p), format); err != nil {
		return err
	}
	if format == pipeline.FormatTable {
		_, _ = fmt.Fprintln(w, "Input is valid.")
	}
	return nil
}

// WatchFile calls onChange after each burst of writes to path until ctx is
// done. The parent directory is watched so that editors which replace the
// file on save are still seen.
func WatchFile(ctx context.Context, path string, logger *slog.Logger, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	logger.Info("watching for changes", slog.String("path", target))

	// The timer only signals; onChange runs on this goroutine so calls never
	// overlap and none happen after return.
	fire := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			onChange()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}
