// Package state keeps a ledger of hwave runs in SQLite: which mode ran on
// which input, how it ended, and the resulting energy.
package state

import (
	"time"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID          string
	Mode        string
	InputPath   string
	OutputDir   string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Iterations  int
	Converged   bool
	Energy      *float64
	Error       string
}

// Outcome is what CompleteRun records.
type Outcome struct {
	Status     RunStatus
	Iterations int
	Converged  bool
	Energy     *float64
	Error      string
}
