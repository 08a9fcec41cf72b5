package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/leapstack-labs/hwave/internal/cli"
	"github.com/leapstack-labs/hwave/internal/pipeline"
	"github.com/leapstack-labs/hwave/internal/testutil"
)

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
		want int
	}{
		{"usage", func(*testing.T) []string { return nil }, 1},
		{"unknown mode", func(t *testing.T) []string { return []string{testutil.SetupUHFProject(t, "bogus")} }, 0},
		{"uhf", func(t *testing.T) []string { return []string{"--print-level", "0", testutil.SetupUHFProject(t, "UHF")} }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := cli.NewRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args(t))

			err := cmd.ExecuteContext(context.Background())
			if got := pipeline.ExitCode(err); got != tt.want {
				t.Errorf("exit status = %d, want %d (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), "hwave") {
		t.Errorf("version output should contain 'hwave', got: %s", buf.String())
	}
}
