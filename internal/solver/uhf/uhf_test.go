package uhf

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/input"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/solver"
	"github.com/leapstack-labs/hwave/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dimer is a two-site Hubbard model with hopping -1.
func dimer(u, v float64) *input.Lattice {
	lat := &input.Lattice{}
	for s := 0; s < 2; s++ {
		lat.Transfer = append(lat.Transfer,
			input.Transfer{I: 0, S: s, J: 1, T: s, Value: -1},
			input.Transfer{I: 1, S: s, J: 0, T: s, Value: -1},
		)
	}
	if u != 0 {
		lat.CoulombIntra = []input.Intra{{I: 0, U: u}, {I: 1, U: u}}
	}
	if v != 0 {
		lat.CoulombInter = []input.Inter{{I: 0, J: 1, V: v}}
	}
	return lat
}

func newSolver(t *testing.T, lat *input.Lattice, mode map[string]any) solver.Solver {
	t.Helper()
	set, err := params.Canonicalize(nil, mode)
	require.NoError(t, err)
	s, err := solver.New(Mode, solver.Inputs{
		Hamiltonian: lat,
		Log:         config.Log{PrintLevel: 1, PrintStep: 10},
		Mode:        config.Mode{Mode: Mode, FlagFock: true},
		Params:      set,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return s
}

func energy(t *testing.T, p *solver.Physics, name string) float64 {
	t.Helper()
	for _, term := range p.Energy {
		if term.Name == name {
			return term.Value
		}
	}
	t.Fatalf("energy term %s not found", name)
	return 0
}

func TestUHF_Registered(t *testing.T) {
	assert.True(t, solver.IsRegistered(Mode))
}

func TestUHF_NonInteracting(t *testing.T) {
	s := newSolver(t, dimer(0, 0), map[string]any{
		"Nsite": int64(2), "Ncond": int64(2), "EPS": int64(10),
	})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	p, g, err := s.Results()
	require.NoError(t, err)
	assert.True(t, p.Converged)
	assert.InDelta(t, -2.0, p.Total(), 1e-6)
	assert.InDelta(t, 2.0, p.Ncond, 1e-9)
	assert.InDelta(t, 0.0, p.Sz, 1e-9)

	// Bonding orbital: every element of the density matrix is 1/2.
	for spin := 0; spin < 2; spin++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				v, ok := g.At(spin, [3]int{}, i, j)
				require.True(t, ok)
				assert.InDelta(t, 0.5, real(v), 1e-4)
			}
		}
	}
}

func TestUHF_HubbardDimer(t *testing.T) {
	const u = 4.0
	s := newSolver(t, dimer(u, 0), map[string]any{
		"Nsite": int64(2), "Ncond": int64(2), "2Sz": int64(0),
		"EPS": int64(10), "IterationMax": int64(2000),
	})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	p, _, err := s.Results()
	require.NoError(t, err)
	assert.True(t, p.Converged)
	assert.InDelta(t, 2.0, p.Ncond, 1e-9)
	assert.InDelta(t, 0.0, p.Sz, 1e-9)

	// Mean-field lies between the exact ground state and the paramagnetic
	// solution.
	exact := -(math.Sqrt(u*u+16) - u) / 2
	assert.GreaterOrEqual(t, p.Total(), exact-1e-6)
	assert.LessOrEqual(t, p.Total(), 1e-6)
	assert.InDelta(t, p.Total(), energy(t, p, "Energy_Band")-energy(t, p, "Energy_CoulombIntra"), 1e-12)
}

func TestUHF_InterSiteFock(t *testing.T) {
	s := newSolver(t, dimer(0, 1), map[string]any{
		"Nsite": int64(2), "Ncond": int64(2), "EPS": int64(10), "IterationMax": int64(2000),
	})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	p, _, err := s.Results()
	require.NoError(t, err)
	assert.True(t, p.Converged)
	assert.Less(t, energy(t, p, "Energy_Fock"), 0.0)
	assert.Greater(t, energy(t, p, "Energy_CoulombInter"), 0.0)
}

func TestUHF_FiniteTemperature(t *testing.T) {
	s := newSolver(t, dimer(0, 0), map[string]any{
		"Nsite": int64(2), "Ncond": int64(2), "T": 0.5, "EPS": int64(10),
	})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	p, _, err := s.Results()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, p.Ncond, 1e-6)
	assert.Greater(t, p.Total(), -2.0)
}

func TestUHF_IterationCap(t *testing.T) {
	s := newSolver(t, dimer(4, 0), map[string]any{
		"Nsite": int64(2), "Ncond": int64(2), "IterationMax": int64(0),
	})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	p, _, err := s.Results()
	require.NoError(t, err)
	assert.False(t, p.Converged)
	assert.Equal(t, 0, p.Iterations)
}

func TestUHF_Cancelled(t *testing.T) {
	s := newSolver(t, dimer(4, 0), map[string]any{"Nsite": int64(2), "Ncond": int64(2)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Solve(ctx, t.TempDir()), context.Canceled)
}

func TestUHF_ResultsBeforeSolve(t *testing.T) {
	s := newSolver(t, dimer(0, 0), map[string]any{"Nsite": int64(2), "Ncond": int64(2)})
	_, _, err := s.Results()
	assert.ErrorIs(t, err, solver.ErrNotSolved)
	assert.ErrorIs(t, s.SaveResults(config.Output{}, nil), solver.ErrNotSolved)
}

func TestUHF_SaveResults(t *testing.T) {
	s := newSolver(t, dimer(0, 0), map[string]any{"Nsite": int64(2), "Ncond": int64(2), "EPS": int64(10)})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	dir := t.TempDir()
	out := config.Output{PathToOutput: dir, Energy: "energy.dat", Green: "green.dat"}
	green := &input.SiteGreen{OneBody: []input.GreenIndex{{I: 0, S: 0, J: 1, T: 0}, {I: 0, S: 0, J: 1, T: 1}}}
	require.NoError(t, s.SaveResults(out, green))

	_, err := os.Stat(filepath.Join(dir, "energy.dat"))
	assert.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "green.dat"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "5.0000")

	assert.Error(t, s.SaveResults(out, &input.CellGreen{}))
}

func TestUHF_SaveResults_IndexOutOfRange(t *testing.T) {
	s := newSolver(t, dimer(0, 0), map[string]any{"Nsite": int64(2), "Ncond": int64(2), "EPS": int64(10)})
	require.NoError(t, s.Solve(context.Background(), t.TempDir()))

	tests := []struct {
		name string
		idx  input.GreenIndex
		want string
	}{
		{name: "site past end", idx: input.GreenIndex{I: 0, S: 0, J: 2, T: 0}, want: "sites"},
		{name: "negative site", idx: input.GreenIndex{I: -1, S: 0, J: 0, T: 0}, want: "sites"},
		{name: "spin two", idx: input.GreenIndex{I: 0, S: 2, J: 1, T: 2}, want: "spins"},
		{name: "negative spin", idx: input.GreenIndex{I: 0, S: 0, J: 1, T: -1}, want: "spins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			out := config.Output{PathToOutput: dir, Energy: "energy.dat", Green: "green.dat"}
			err := s.SaveResults(out, &input.SiteGreen{OneBody: []input.GreenIndex{tt.idx}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NoFileExists(t, filepath.Join(dir, "green.dat"))
		})
	}
}

func TestNew_Errors(t *testing.T) {
	set, err := params.Canonicalize(nil, map[string]any{"Nsite": int64(2), "Ncond": int64(2)})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   solver.Inputs
		want string
	}{
		{name: "wrong hamiltonian", in: solver.Inputs{Hamiltonian: &input.KLattice{}, Params: set}, want: "real-space lattice"},
		{name: "no params", in: solver.Inputs{Hamiltonian: dimer(0, 0)}, want: "parameter set"},
		{
			name: "complex transfer",
			in:   solver.Inputs{Hamiltonian: &input.Lattice{Transfer: []input.Transfer{{I: 0, J: 1, Value: complex(0, 1)}}}, Params: set},
			want: "complex",
		},
		{
			name: "spin flip",
			in:   solver.Inputs{Hamiltonian: &input.Lattice{Transfer: []input.Transfer{{I: 0, S: 0, J: 1, T: 1, Value: 1}}}, Params: set},
			want: "spin-conserving",
		},
		{
			name: "site out of range",
			in:   solver.Inputs{Hamiltonian: &input.Lattice{CoulombIntra: []input.Intra{{I: 5, U: 1}}}, Params: set},
			want: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
