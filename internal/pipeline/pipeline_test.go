package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/solver"
	"github.com/leapstack-labs/hwave/internal/state"
	"github.com/leapstack-labs/hwave/internal/testutil"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"unknown mode", &UnknownModeError{Mode: "bogus"}, 0},
		{"wrapped unknown mode", errors.Join(errors.New("ctx"), &UnknownModeError{Mode: "x"}), 0},
		{"missing mode", &MissingModeError{}, 1},
		{"bounds", &params.BoundsError{}, 1},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, LevelFor(-1))
	assert.Equal(t, slog.LevelWarn, LevelFor(0))
	assert.Equal(t, slog.LevelInfo, LevelFor(1))
	assert.Equal(t, slog.LevelDebug, LevelFor(2))
	assert.Equal(t, slog.LevelDebug, LevelFor(5))
}

func TestModes(t *testing.T) {
	assert.Equal(t, []string{"UHF", "UHFk"}, Modes())
}

func TestEnsureOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureOutputDir(dir))
	require.NoError(t, EnsureOutputDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureOutputDir(""))
}

func TestRunner_UnknownMode(t *testing.T) {
	rec := testutil.NewRecorder()
	r := &Runner{Logger: rec.Logger()}

	_, err := r.Run(context.Background(), config.Source{Document: map[string]any{
		"mode": map[string]any{"mode": "bogus"},
		"file": map[string]any{"output": map[string]any{"path_to_output": filepath.Join(t.TempDir(), "out")}},
	}})

	var unknown *UnknownModeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "bogus", unknown.Mode)
	assert.Equal(t, []string{"UHF", "UHFk"}, unknown.Available)
	assert.Equal(t, 0, ExitCode(err))
	assert.Equal(t, 1, rec.Count(slog.LevelWarn))
	assert.Zero(t, rec.Count(slog.LevelError))
}

func TestRunner_MissingMode(t *testing.T) {
	rec := testutil.NewRecorder()
	r := &Runner{Logger: rec.Logger()}

	_, err := r.Prepare(context.Background(), config.Source{Document: map[string]any{
		"log": map[string]any{"print_level": 1},
	}})

	var missing *MissingModeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, []string{"mode is not defined in [mode]"}, rec.Messages(slog.LevelError))
	assert.Zero(t, rec.Count(slog.LevelWarn))
}

func TestRunner_NoSource(t *testing.T) {
	r := &Runner{}
	_, err := r.Run(context.Background(), config.Source{})

	var srcErr *config.ConfigSourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, 1, ExitCode(err))
}

func TestRunner_SetsLevel(t *testing.T) {
	level := new(slog.LevelVar)
	r := &Runner{Level: level}

	_, _, err := r.load(config.Source{Document: map[string]any{
		"log":  map[string]any{"print_level": 2},
		"mode": map[string]any{"mode": "bogus"},
	}})
	require.Error(t, err)
	assert.Equal(t, slog.LevelDebug, level.Level())
}

func TestRunner_PrepareUHF(t *testing.T) {
	path := testutil.SetupUHFProject(t, "UHF")
	r := &Runner{Logger: testutil.NewTestLogger(t)}

	p, err := r.Prepare(context.Background(), config.Source{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "UHF", p.Mode)
	assert.NotNil(t, p.Hamiltonian)
	assert.NotNil(t, p.Green)

	nsite, ok := p.Params.Get("Nsite")
	require.True(t, ok)
	assert.Equal(t, int64(2), nsite)
	src, _ := p.Params.Source("Nsite")
	assert.Equal(t, params.SourceBase, src)

	eps, ok := p.Params.Float("EPS")
	require.True(t, ok)
	assert.InDelta(t, 1e-10, eps, 1e-24)

	// Prepare is a dry run.
	_, err = os.Stat(p.Config.OutputDir())
	assert.True(t, os.IsNotExist(err))
}

func TestRunner_PrepareUHFk(t *testing.T) {
	path := testutil.SetupUHFkProject(t)
	r := &Runner{Logger: testutil.NewTestLogger(t)}

	p, err := r.Prepare(context.Background(), config.Source{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "UHFk", p.Mode)
	nsite, ok := p.Params.Get("Nsite")
	require.True(t, ok)
	assert.Equal(t, int64(4), nsite)
	src, _ := p.Params.Source("Nsite")
	assert.Equal(t, params.SourceDefault, src)
}

func TestRunner_PrepareBoundsViolations(t *testing.T) {
	stan := filepath.Join(filepath.Dir(testutil.SetupUHFProject(t, "UHF")), "stan")
	rec := testutil.NewRecorder()
	r := &Runner{Logger: rec.Logger()}

	_, err := r.Prepare(context.Background(), config.Source{Document: map[string]any{
		"mode": map[string]any{
			"mode":  "UHF",
			"param": map[string]any{"Mix": 1.5, "Nsite": 0},
		},
		"file": map[string]any{"input": map[string]any{"path_to_input": stan}},
	}})

	var bounds *params.BoundsError
	require.ErrorAs(t, err, &bounds)
	assert.GreaterOrEqual(t, len(bounds.Violations), 2)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, 1, rec.Count(slog.LevelError))
}

func TestRunner_PrepareBadFlagFock(t *testing.T) {
	stan := filepath.Join(filepath.Dir(testutil.SetupUHFProject(t, "UHF")), "stan")
	r := &Runner{}

	_, err := r.Prepare(context.Background(), config.Source{Document: map[string]any{
		"mode": map[string]any{"mode": "UHF", "flag_fock": "yes"},
		"file": map[string]any{"input": map[string]any{"path_to_input": stan}},
	}})

	var consistency *params.ConsistencyError
	require.ErrorAs(t, err, &consistency)
	require.Len(t, consistency.Issues, 1)
	assert.Equal(t, "flag_fock", consistency.Issues[0].Key)
}

func TestRunner_PrepareMissingInput(t *testing.T) {
	r := &Runner{}
	_, err := r.Prepare(context.Background(), config.Source{Document: map[string]any{
		"mode": map[string]any{"mode": "UHF"},
		"file": map[string]any{"input": map[string]any{"path_to_input": t.TempDir()}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open UHF input")
}

func TestRunner_RunUHF(t *testing.T) {
	path := testutil.SetupUHFProject(t, "UHF")
	r := &Runner{Logger: testutil.NewTestLogger(t)}

	res, err := r.Run(context.Background(), config.Source{Path: path})
	require.NoError(t, err)
	require.NotNil(t, res.Physics)
	assert.True(t, res.Physics.Converged)
	assert.Empty(t, res.RunID)

	out := res.Config.OutputDir()
	energy, err := os.ReadFile(filepath.Join(out, "energy.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(energy), "Energy_Total")
	assert.FileExists(t, filepath.Join(out, "green.dat"))
}

func TestRunner_RunUHFk(t *testing.T) {
	path := testutil.SetupUHFkProject(t)
	r := &Runner{Logger: testutil.NewTestLogger(t)}

	res, err := r.Run(context.Background(), config.Source{Path: path})
	require.NoError(t, err)
	assert.True(t, res.Physics.Converged)
	assert.InDelta(t, 4.0, res.Physics.Ncond, 1e-6)

	out := res.Config.OutputDir()
	assert.FileExists(t, filepath.Join(out, "energy.dat"))
	assert.FileExists(t, filepath.Join(out, "green.dat"))
}

func TestRunner_RunCancelled(t *testing.T) {
	path := testutil.SetupUHFProject(t, "UHF")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&Runner{}).Run(ctx, config.Source{Path: path})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ExitCode(err))
}

func historyFlags(t *testing.T, db string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("history-db", "", "")
	require.NoError(t, fs.Set("history-db", db))
	return fs
}

func TestRunner_Ledger(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "history.db")
	r := &Runner{Logger: testutil.NewTestLogger(t), Flags: historyFlags(t, db)}

	res, err := r.Run(ctx, config.Source{Path: testutil.SetupUHFProject(t, "UHF")})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(ctx, db))
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "UHF", run.Mode)
	assert.Equal(t, state.RunStatusCompleted, run.Status)
	assert.True(t, run.Converged)
	require.NotNil(t, run.Energy)
	assert.InDelta(t, res.Physics.Total(), *run.Energy, 1e-12)
	assert.NotNil(t, run.CompletedAt)
}

func TestRunner_LedgerRecordsFailure(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "history.db")
	r := &Runner{Flags: historyFlags(t, db)}

	_, err := r.Run(ctx, config.Source{Document: map[string]any{
		"mode": map[string]any{"mode": "UHF"},
		"file": map[string]any{
			"input":  map[string]any{"path_to_input": t.TempDir()},
			"output": map[string]any{"path_to_output": filepath.Join(t.TempDir(), "out")},
		},
	}})
	require.Error(t, err)

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(ctx, db))
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunStatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "failed to open UHF input")
	assert.Nil(t, runs[0].Energy)
}

func TestModes_HaveSolvers(t *testing.T) {
	require.NotEmpty(t, Modes())
	for _, m := range Modes() {
		assert.True(t, solver.IsRegistered(m), m)
	}
}

func TestWriteReport(t *testing.T) {
	path := testutil.SetupUHFProject(t, "UHF")
	p, err := (&Runner{}).Prepare(context.Background(), config.Source{Path: path})
	require.NoError(t, err)
	rep := NewReport(p)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, rep, FormatTable))
		out := buf.String()
		assert.Contains(t, out, "mode: UHF")
		assert.Contains(t, out, "Nsite")
		assert.Contains(t, out, "base")
		assert.Contains(t, out, "default")
		assert.Contains(t, out, "Setting")
		assert.Contains(t, out, "mode.mode")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, rep, FormatYAML))

		var decoded struct {
			Mode   string `yaml:"mode"`
			Params []struct {
				Key    string `yaml:"key"`
				Source string `yaml:"source"`
			} `yaml:"params"`
		}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "UHF", decoded.Mode)
		assert.Len(t, decoded.Params, p.Params.Len())
	})

	t.Run("settings carry their origin", func(t *testing.T) {
		origins := map[string]string{}
		for _, e := range rep.Settings {
			origins[e.Key] = e.Source
		}
		assert.Equal(t, string(config.OriginFile), origins["mode.mode"])
		assert.Equal(t, string(config.OriginFile), origins["log.print_step"])
		assert.Equal(t, string(config.OriginDefault), origins["file.output.history_db"])
	})

	t.Run("unknown format", func(t *testing.T) {
		err := WriteReport(&bytes.Buffer{}, rep, "json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})
}

func TestTableStyle_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "StyleLight", TableStyle(&buf).Name)
}
