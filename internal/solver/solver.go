// Package solver defines the lifecycle every mean-field solver implements
// and the pieces the UHF and UHFk variants share.
package solver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/input"
	"github.com/leapstack-labs/hwave/internal/params"
	"gonum.org/v1/gonum/mat"
)

// ErrNotSolved is returned by Results before Solve has completed.
var ErrNotSolved = errors.New("solver has not been run: call Solve first")

// Solver is the lifecycle of one mean-field calculation.
type Solver interface {
	// Solve runs the self-consistent loop. Intermediate files, if any, go
	// under outputDir.
	Solve(ctx context.Context, outputDir string) error
	// SaveResults writes the files named in out for the requested Green's
	// function components.
	SaveResults(out config.Output, green input.GreenInfo) error
	// Results returns the converged physics and Green's function.
	Results() (*Physics, *Green, error)
}

// Inputs is what the pipeline hands a solver factory.
type Inputs struct {
	Hamiltonian input.HamiltonianInfo
	Log         config.Log
	Mode        config.Mode
	Params      *params.Set
	Logger      *slog.Logger
}

// Term is one named contribution to the energy.
type Term struct {
	Name  string
	Value float64
}

// Physics holds the observables of a solve.
type Physics struct {
	// Energy lists the energy terms; the first is the total.
	Energy     []Term
	Mu         float64
	Ncond      float64
	Sz         float64
	Residual   float64
	Iterations int
	Converged  bool
	// Eigenvalues per spin; for UHFk all k-points are concatenated.
	Eigenvalues [2][]float64
}

// Total returns the total energy.
func (p *Physics) Total() float64 {
	if p == nil || len(p.Energy) == 0 {
		return 0
	}
	return p.Energy[0].Value
}

// Green is the one-body Green's function <c†_{a,s}(0) c_{b,s}(R)> for each
// spin s and each cell offset R in Cells. A real-space solve has the single
// cell {0,0,0} holding the full site matrix.
type Green struct {
	Cells  [][3]int
	Blocks [2][]*mat.CDense
}

// At returns one component, or false if R was not computed or the orbital
// indices are out of range.
func (g *Green) At(spin int, R [3]int, a, b int) (complex128, bool) {
	if g == nil || spin < 0 || spin > 1 {
		return 0, false
	}
	for i, c := range g.Cells {
		if c != R {
			continue
		}
		m := g.Blocks[spin][i]
		r, cols := m.Dims()
		if a < 0 || a >= r || b < 0 || b >= cols {
			return 0, false
		}
		return m.At(a, b), true
	}
	return 0, false
}

// Base provides no-op lifecycle methods. Variants embed it and override
// what they implement.
type Base struct {
	In      Inputs
	Logger  *slog.Logger
	physics *Physics
	green   *Green
}

// NewBase fills the logger with a discard handler when none is given.
func NewBase(in Inputs) Base {
	logger := in.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return Base{In: in, Logger: logger}
}

// Solve does nothing.
func (b *Base) Solve(context.Context, string) error { return nil }

// SaveResults does nothing.
func (b *Base) SaveResults(config.Output, input.GreenInfo) error { return nil }

// Results returns what SetResults stored, or ErrNotSolved.
func (b *Base) Results() (*Physics, *Green, error) {
	if b.physics == nil {
		return nil, nil, ErrNotSolved
	}
	return b.physics, b.green, nil
}

// SetResults records the outcome of a solve.
func (b *Base) SetResults(p *Physics, g *Green) {
	b.physics = p
	b.green = g
}

// PrintStep returns log.print_step, at least 1.
func (b *Base) PrintStep() int {
	if b.In.Log.PrintStep < 1 {
		return 1
	}
	return b.In.Log.PrintStep
}

var _ Solver = (*Base)(nil)
