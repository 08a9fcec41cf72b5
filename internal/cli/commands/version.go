package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display hwave version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "hwave v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unrestricted Hartree-Fock solver (%s)\n", runtime.Version())
		},
	}
}
