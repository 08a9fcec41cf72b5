package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// timeLayout has a fixed width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = `id, mode, input_path, output_dir, status, started_at, completed_at, iterations, converged, energy, error`

// StartRun records a new run in the running state.
func (s *SQLiteStore) StartRun(ctx context.Context, mode, inputPath, outputDir string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Mode:      mode,
		InputPath: inputPath,
		OutputDir: outputDir,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	s.logger.Debug("starting run", slog.String("id", run.ID), slog.String("mode", mode))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, input_path, output_dir, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.InputPath, run.OutputDir, string(run.Status), run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun stores the outcome of a run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, o Outcome) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errMsg sql.NullString
	if o.Error != "" {
		errMsg = sql.NullString{String: o.Error, Valid: true}
	}
	var energy sql.NullFloat64
	if o.Energy != nil {
		energy = sql.NullFloat64{Float64: *o.Energy, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, iterations = ?, converged = ?, energy = ?, error = ? WHERE id = ?`,
		string(o.Status), time.Now().UTC().Format(timeLayout), o.Iterations, o.Converged, energy, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run         Run
		status      string
		startedAt   string
		completedAt sql.NullString
		energy      sql.NullFloat64
		errMsg      sql.NullString
	)
	err := sc.Scan(&run.ID, &run.Mode, &run.InputPath, &run.OutputDir, &status, &startedAt,
		&completedAt, &run.Iterations, &run.Converged, &energy, &errMsg)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt.String, err)
		}
		run.CompletedAt = &t
	}
	if energy.Valid {
		e := energy.Float64
		run.Energy = &e
	}
	run.Error = errMsg.String
	return &run, nil
}
