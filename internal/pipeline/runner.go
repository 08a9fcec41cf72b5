// Package pipeline drives one hwave run: it loads the run configuration,
// dispatches on mode.mode, reads the definition files, builds and validates
// the parameter set, and walks the selected solver through its lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/input"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/solver"
	"github.com/leapstack-labs/hwave/internal/state"
)

// Runner holds what a run needs besides its input.
type Runner struct {
	// Logger receives all pipeline and solver records. Nil discards them.
	Logger *slog.Logger
	// Level, when set, is adjusted to log.print_level once the
	// configuration is loaded.
	Level *slog.LevelVar
	// Flags are the explicitly set command-line overrides, may be nil.
	Flags *pflag.FlagSet
}

// Prepared is a run that has passed every check and is ready to solve.
type Prepared struct {
	Config      *config.Run
	Mode        string
	Params      *params.Set
	Hamiltonian input.HamiltonianInfo
	Green       input.GreenInfo
}

// Result is a completed run.
type Result struct {
	*Prepared
	Physics *solver.Physics
	// RunID is the ledger entry, empty when no history database is set.
	RunID string
}

// LevelFor maps log.print_level to a slog level.
func LevelFor(printLevel int) slog.Level {
	switch {
	case printLevel <= 0:
		return slog.LevelWarn
	case printLevel == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// EnsureOutputDir creates path and its parents. An existing directory is
// not an error.
func EnsureOutputDir(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", path, err)
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

// load reads the configuration and resolves the mode. A missing mode is
// logged as an error, an unknown one as a warning.
func (r *Runner) load(src config.Source) (*config.Run, modeSpec, error) {
	log := r.logger()

	cfg, err := config.Load(src, r.Flags)
	if err != nil {
		return nil, modeSpec{}, err
	}
	if r.Level != nil {
		r.Level.Set(LevelFor(cfg.Log.PrintLevel))
	}

	if !cfg.HasMode() {
		err := &MissingModeError{}
		log.Error(err.Error())
		return cfg, modeSpec{}, err
	}
	spec, ok := modes[cfg.Mode.Mode]
	if !ok || !solver.IsRegistered(spec.name) {
		err := &UnknownModeError{Mode: cfg.Mode.Mode, Available: Modes()}
		log.Warn("mode is incorrect", slog.String("mode", cfg.Mode.Mode), slog.Any("available", err.Available))
		return cfg, modeSpec{}, err
	}
	log.Debug("mode resolved", slog.String("mode", spec.name))
	return cfg, spec, nil
}

// Prepare runs every step short of solving and writes nothing to disk.
func (r *Runner) Prepare(_ context.Context, src config.Source) (*Prepared, error) {
	cfg, spec, err := r.load(src)
	if err != nil {
		return nil, err
	}
	return r.prepare(cfg, spec)
}

func (r *Runner) prepare(cfg *config.Run, spec modeSpec) (*Prepared, error) {
	log := r.logger()

	reader, err := spec.reader(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s input: %w", spec.name, err)
	}
	mod, err := input.GetParam(reader, input.SectionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to read model parameters: %w", err)
	}
	ham, err := input.GetParam(reader, input.SectionHamiltonian)
	if err != nil {
		return nil, fmt.Errorf("failed to read hamiltonian: %w", err)
	}
	green, err := input.GetParam(reader, input.SectionOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to read green function request: %w", err)
	}

	model, _ := mod.(map[string]any)
	set, err := spec.canonicalize(model, cfg.Mode.Param)
	if err != nil {
		return nil, err
	}
	log.Info("parameters", slog.String("mode", spec.name), slog.String("params", set.String()))

	if err := errors.Join(
		params.CheckMode(cfg.Mode.Mode, cfg.Mode.FlagFock),
		params.Validate(set, map[string]any{"print_step": cfg.Log.PrintStep}),
	); err != nil {
		log.Error("parameter check failed", slog.Any("error", err))
		return nil, err
	}

	p := &Prepared{Config: cfg, Mode: spec.name, Params: set}
	p.Hamiltonian, _ = ham.(input.HamiltonianInfo)
	p.Green, _ = green.(input.GreenInfo)
	return p, nil
}

// Run executes the full lifecycle: configuration, dispatch, output
// directory, inputs, parameters, then Solve and SaveResults.
func (r *Runner) Run(ctx context.Context, src config.Source) (*Result, error) {
	log := r.logger()

	cfg, spec, err := r.load(src)
	if err != nil {
		return nil, err
	}
	outDir := cfg.OutputDir()
	if err := EnsureOutputDir(outDir); err != nil {
		return nil, err
	}

	ledger, runID, err := r.startLedger(ctx, cfg, spec.name)
	if err != nil {
		return nil, err
	}
	if ledger != nil {
		defer func() { _ = ledger.Close() }()
	}

	res, err := r.solve(ctx, cfg, spec)
	if ledger != nil {
		r.finishLedger(ctx, ledger, runID, res, err)
	}
	if err != nil {
		return nil, err
	}
	res.RunID = runID
	log.Info("run completed", slog.String("mode", spec.name), slog.Float64("energy", res.Physics.Total()))
	return res, nil
}

func (r *Runner) solve(ctx context.Context, cfg *config.Run, spec modeSpec) (*Result, error) {
	prep, err := r.prepare(cfg, spec)
	if err != nil {
		return nil, err
	}

	s, err := solver.New(prep.Mode, solver.Inputs{
		Hamiltonian: prep.Hamiltonian,
		Log:         cfg.Log,
		Mode:        cfg.Mode,
		Params:      prep.Params,
		Logger:      r.logger().With(slog.String("solver", prep.Mode)),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Solve(ctx, cfg.OutputDir()); err != nil {
		return nil, fmt.Errorf("%s solve failed: %w", prep.Mode, err)
	}
	if err := s.SaveResults(cfg.File.Output, prep.Green); err != nil {
		return nil, fmt.Errorf("failed to save results: %w", err)
	}
	physics, _, err := s.Results()
	if err != nil {
		return nil, err
	}
	return &Result{Prepared: prep, Physics: physics}, nil
}

func (r *Runner) startLedger(ctx context.Context, cfg *config.Run, mode string) (*state.SQLiteStore, string, error) {
	path := cfg.File.Output.HistoryDB
	if path == "" {
		return nil, "", nil
	}
	store := state.NewSQLiteStore(r.logger())
	if err := store.Open(ctx, path); err != nil {
		return nil, "", fmt.Errorf("failed to open history database: %w", err)
	}
	run, err := store.StartRun(ctx, mode, cfg.SourcePath, cfg.OutputDir())
	if err != nil {
		_ = store.Close()
		return nil, "", err
	}
	return store, run.ID, nil
}

// finishLedger records the outcome. Ledger failures are logged and do not
// change the result of the run.
func (r *Runner) finishLedger(ctx context.Context, store *state.SQLiteStore, id string, res *Result, runErr error) {
	o := state.Outcome{Status: state.RunStatusCompleted}
	if runErr != nil {
		o.Status = state.RunStatusFailed
		o.Error = runErr.Error()
	} else if res != nil && res.Physics != nil {
		e := res.Physics.Total()
		o.Energy = &e
		o.Iterations = res.Physics.Iterations
		o.Converged = res.Physics.Converged
	}
	// The run context may already be cancelled; the outcome still belongs
	// in the ledger.
	if err := store.CompleteRun(context.WithoutCancel(ctx), id, o); err != nil {
		r.logger().Warn("failed to record run outcome", slog.String("id", id), slog.Any("error", err))
	}
}
