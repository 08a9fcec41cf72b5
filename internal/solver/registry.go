package solver

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a solver from the run inputs.
type Factory func(Inputs) (Solver, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a solver factory under a mode name.
// Called by solver implementations in their init() functions.
func Register(mode string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[mode] = factory
}

// Get retrieves a solver factory by mode name.
func Get(mode string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[mode]
	return f, ok
}

// New constructs the solver registered for mode.
func New(mode string, in Inputs) (Solver, error) {
	if mode == "" {
		return nil, fmt.Errorf("solver mode not specified")
	}
	factory, ok := Get(mode)
	if !ok {
		return nil, &UnknownSolverError{Mode: mode, Available: List()}
	}
	return factory(in)
}

// List returns all registered mode names (sorted).
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a mode has a solver.
func IsRegistered(mode string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[mode]
	return ok
}

// UnknownSolverError is returned when no solver is registered for a mode.
type UnknownSolverError struct {
	Mode      string
	Available []string
}

func (e *UnknownSolverError) Error() string {
	return fmt.Sprintf("no solver for mode %q\nAvailable modes: %v\nHint: Check mode.mode in the input file", e.Mode, e.Available)
}
