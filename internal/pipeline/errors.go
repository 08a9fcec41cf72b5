package pipeline

import (
	"errors"
	"fmt"
)

// MissingModeError is returned when [mode] has no mode key. The run is
// aborted with a failure status.
type MissingModeError struct{}

func (e *MissingModeError) Error() string {
	return "mode is not defined in [mode]"
}

// UnknownModeError is returned when mode.mode names no known solver. It is
// not a failure: the run stops without computing and exits with status 0.
type UnknownModeError struct {
	Mode      string
	Available []string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("mode is incorrect: mode=%s (available: %v)", e.Mode, e.Available)
}

// ExitCode maps a pipeline error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var unknown *UnknownModeError
	if errors.As(err, &unknown) {
		return 0
	}
	return 1
}
