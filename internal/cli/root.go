// Package cli provides the command-line interface for hwave.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/hwave/internal/cli/commands"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/pipeline"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// UsageError is returned when the root command gets the wrong number of
// arguments.
type UsageError struct{}

func (e *UsageError) Error() string {
	return "Usage: hwave input.toml"
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hwave <input>",
		Short: "hwave - unrestricted Hartree-Fock for lattice models",
		Long: `hwave solves the unrestricted Hartree-Fock equations for Hubbard-type
lattice models, in real space (mode UHF) or in momentum space (mode UHFk).

The single argument is a TOML or YAML input file with the sections
[log], [mode], [file.input] and [file.output].`,
		Version: Version,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &UsageError{}
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			level := new(slog.LevelVar)
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			cmd.SetContext(commands.WithLogging(ctx, logger, level))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunInput(cmd, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Unrestricted Hartree-Fock solver
`)

	// Overrides for the input file's settings
	rootCmd.PersistentFlags().String("output-dir", "", "Override file.output.path_to_output")
	rootCmd.PersistentFlags().Int("print-level", 1, "Override log.print_level (0 warn, 1 info, 2 debug)")
	rootCmd.PersistentFlags().Int("print-step", 1, "Override log.print_step")
	rootCmd.PersistentFlags().String("history-db", "", "Record runs in this SQLite database")

	_ = rootCmd.RegisterFlagCompletionFunc("print-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"0", "1", "2"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.MarkPersistentFlagDirname("output-dir")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command with ctx and reports errors on stderr.
// Mode and parameter check errors are already logged by the pipeline and are
// not repeated.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !logged(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func logged(err error) bool {
	var missing *pipeline.MissingModeError
	var unknown *pipeline.UnknownModeError
	var bounds *params.BoundsError
	var consistency *params.ConsistencyError
	return errors.As(err, &missing) || errors.As(err, &unknown) ||
		errors.As(err, &bounds) || errors.As(err, &consistency)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for hwave.

To load completions:

Bash:
  $ source <(hwave completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ hwave completion bash > /etc/bash_completion.d/hwave
  # macOS:
  $ hwave completion bash > $(brew --prefix)/etc/bash_completion.d/hwave

Zsh:
  $ hwave completion zsh > "${fpath[1]}/_hwave"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ hwave completion fish > ~/.config/fish/completions/hwave.fish

PowerShell:
  PS> hwave completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
