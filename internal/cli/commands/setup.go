// Package commands implements the hwave subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/hwave/internal/pipeline"
)

type loggerKey struct{}

type levelKey struct{}

// WithLogging stores the invocation's logger and its level handle in ctx.
func WithLogging(ctx context.Context, logger *slog.Logger, level *slog.LevelVar) context.Context {
	ctx = context.WithValue(ctx, loggerKey{}, logger)
	return context.WithValue(ctx, levelKey{}, level)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// GetLevel retrieves the level handle from the command context, or nil.
func GetLevel(ctx context.Context) *slog.LevelVar {
	if l, ok := ctx.Value(levelKey{}).(*slog.LevelVar); ok {
		return l
	}
	return nil
}

// NewRunner builds a pipeline runner from the command's context and flags.
func NewRunner(cmd *cobra.Command) *pipeline.Runner {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return &pipeline.Runner{
		Logger: GetLogger(ctx),
		Level:  GetLevel(ctx),
		Flags:  cmd.Flags(),
	}
}
