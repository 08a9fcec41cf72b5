// Package uhf implements the real-space unrestricted Hartree-Fock solver.
//
// The model has Nsite sites with collinear spin. Transfer terms must be
// real and spin-conserving; on-site Coulomb terms enter through Hartree
// terms, inter-site ones through Hartree and, when flag_fock is set, Fock
// terms.
package uhf

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/input"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/solver"
	"gonum.org/v1/gonum/mat"
)

// Mode is the mode name this solver registers under.
const Mode = "UHF"

func init() {
	solver.Register(Mode, New)
}

// UHF is the real-space solver.
type UHF struct {
	solver.Base

	lat  *input.Lattice
	p    params.Parameters
	n    int
	h0   [2][]float64
	fock bool

	// rho[s][i*n+j] = <c†_{i,s} c_{j,s}>
	rho [2][]float64
}

// New builds a UHF solver. The Hamiltonian must be an *input.Lattice.
func New(in solver.Inputs) (solver.Solver, error) {
	lat, ok := in.Hamiltonian.(*input.Lattice)
	if !ok {
		return nil, fmt.Errorf("UHF needs a real-space lattice, got %T", in.Hamiltonian)
	}
	if in.Params == nil {
		return nil, fmt.Errorf("UHF needs a parameter set")
	}
	p, err := in.Params.Decode()
	if err != nil {
		return nil, err
	}
	if p.Nsite < 1 {
		return nil, fmt.Errorf("UHF needs Nsite >= 1, got %d", p.Nsite)
	}

	s := &UHF{Base: solver.NewBase(in), lat: lat, p: p, n: p.Nsite, fock: in.Mode.Fock()}
	if err := s.buildTransfer(); err != nil {
		return nil, err
	}
	if err := s.checkInteractions(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *UHF) inRange(i int) bool { return i >= 0 && i < s.n }

func (s *UHF) buildTransfer() error {
	n := s.n
	for sp := range s.h0 {
		s.h0[sp] = make([]float64, n*n)
	}
	for _, t := range s.lat.Transfer {
		if !s.inRange(t.I) || !s.inRange(t.J) {
			return fmt.Errorf("transfer %d-%d: site out of range 0..%d", t.I, t.J, n-1)
		}
		if t.S != t.T || t.S < 0 || t.S > 1 {
			return fmt.Errorf("transfer %d,%d-%d,%d: only spin-conserving terms are supported", t.I, t.S, t.J, t.T)
		}
		if imag(t.Value) != 0 {
			return fmt.Errorf("transfer %d-%d: complex amplitudes need the UHFk solver", t.I, t.J)
		}
		s.h0[t.S][t.I*n+t.J] += real(t.Value)
	}
	return nil
}

func (s *UHF) checkInteractions() error {
	for _, u := range s.lat.CoulombIntra {
		if !s.inRange(u.I) {
			return fmt.Errorf("CoulombIntra: site %d out of range 0..%d", u.I, s.n-1)
		}
	}
	for _, v := range s.lat.CoulombInter {
		if !s.inRange(v.I) || !s.inRange(v.J) {
			return fmt.Errorf("CoulombInter %d-%d: site out of range 0..%d", v.I, v.J, s.n-1)
		}
	}
	return nil
}

// initialState seeds rho from the Initial file or from RndSeed.
func (s *UHF) initialState() error {
	n := s.n
	for sp := range s.rho {
		s.rho[sp] = make([]float64, n*n)
	}
	if len(s.lat.Initial) > 0 {
		for _, g := range s.lat.Initial {
			if !s.inRange(g.I) || !s.inRange(g.J) || g.S != g.T || g.S < 0 || g.S > 1 {
				return fmt.Errorf("initial green %d,%d-%d,%d: unsupported component", g.I, g.S, g.J, g.T)
			}
			s.rho[g.S][g.I*n+g.J] = real(g.Value)
		}
		return nil
	}

	rng := rand.New(rand.NewPCG(uint64(s.p.RndSeed), uint64(s.p.RndSeed))) //nolint:gosec // reproducible start, not security
	per := float64(s.p.Ncond) / float64(2*n)
	for sp := range s.rho {
		for i := 0; i < n; i++ {
			s.rho[sp][i*n+i] = per * (0.5 + rng.Float64())
		}
	}
	return nil
}

// meanField builds the Hartree-Fock Hamiltonian of spin sp.
func (s *UHF) meanField(sp int) *mat.SymDense {
	n := s.n
	h := make([]float64, n*n)
	copy(h, s.h0[sp])
	other := 1 - sp
	for _, u := range s.lat.CoulombIntra {
		h[u.I*n+u.I] += u.U * s.rho[other][u.I*n+u.I]
	}
	for _, v := range s.lat.CoulombInter {
		ni := s.rho[0][v.I*n+v.I] + s.rho[1][v.I*n+v.I]
		nj := s.rho[0][v.J*n+v.J] + s.rho[1][v.J*n+v.J]
		h[v.I*n+v.I] += v.V * nj
		h[v.J*n+v.J] += v.V * ni
		if s.fock {
			h[v.I*n+v.J] -= v.V * s.rho[sp][v.J*n+v.I]
			h[v.J*n+v.I] -= v.V * s.rho[sp][v.I*n+v.J]
		}
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(h[i*n+j]+h[j*n+i]))
		}
	}
	return sym
}

type spectrum struct {
	values  [2][]float64
	vectors [2]*mat.Dense
}

func (s *UHF) diagonalize() (spectrum, error) {
	var sp spectrum
	for spin := range sp.values {
		var eig mat.EigenSym
		if ok := eig.Factorize(s.meanField(spin), true); !ok {
			return sp, fmt.Errorf("eigen decomposition failed for spin %d", spin)
		}
		sp.values[spin] = eig.Values(nil)
		sp.vectors[spin] = mat.NewDense(s.n, s.n, nil)
		eig.VectorsTo(sp.vectors[spin])
	}
	return sp, nil
}

// occupy returns occupations per spin and the chemical potential.
func (s *UHF) occupy(sp spectrum) ([2][]float64, float64, error) {
	var occ [2][]float64
	ncond := float64(s.p.Ncond)
	if s.p.TwoSz != nil {
		up, down, err := s.p.SpinSectors(s.p.Ncond)
		if err != nil {
			return occ, 0, err
		}
		var mu [2]float64
		for spin, count := range [2]int{up, down} {
			o, m, err := solver.Fill(sp.values[spin], 1, float64(count), s.p.T)
			if err != nil {
				return occ, 0, err
			}
			occ[spin], mu[spin] = o, m
		}
		return occ, 0.5 * (mu[0] + mu[1]), nil
	}

	levels := append(append([]float64{}, sp.values[0]...), sp.values[1]...)
	all, mu, err := solver.Fill(levels, 1, ncond, s.p.T)
	if err != nil {
		return occ, 0, err
	}
	occ[0], occ[1] = all[:s.n], all[s.n:]
	return occ, mu, nil
}

func (s *UHF) density(sp spectrum, occ [2][]float64) [2][]float64 {
	n := s.n
	var rho [2][]float64
	for spin := range rho {
		rho[spin] = make([]float64, n*n)
		v := sp.vectors[spin]
		for k, f := range occ[spin] {
			if f == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				vi := v.At(i, k)
				for j := 0; j < n; j++ {
					rho[spin][i*n+j] += f * vi * v.At(j, k)
				}
			}
		}
	}
	return rho
}

// energy evaluates the energy of the state described by rho, given the band
// energy of the mean-field Hamiltonian built from it.
func (s *UHF) energy(band float64) []solver.Term {
	n := s.n
	var intra, inter, fock float64
	for _, u := range s.lat.CoulombIntra {
		intra += u.U * s.rho[0][u.I*n+u.I] * s.rho[1][u.I*n+u.I]
	}
	for _, v := range s.lat.CoulombInter {
		ni := s.rho[0][v.I*n+v.I] + s.rho[1][v.I*n+v.I]
		nj := s.rho[0][v.J*n+v.J] + s.rho[1][v.J*n+v.J]
		inter += v.V * ni * nj
		if s.fock {
			for spin := range s.rho {
				fock -= v.V * s.rho[spin][v.I*n+v.J] * s.rho[spin][v.J*n+v.I]
			}
		}
	}
	// The band energy counts every interaction twice.
	return []solver.Term{
		{Name: "Energy_Total", Value: band - intra - inter - fock},
		{Name: "Energy_Band", Value: band},
		{Name: "Energy_CoulombIntra", Value: intra},
		{Name: "Energy_CoulombInter", Value: inter},
		{Name: "Energy_Fock", Value: fock},
	}
}

// Solve iterates the mean-field equations until the residual drops below
// EPS or IterationMax steps have run.
func (s *UHF) Solve(ctx context.Context, _ string) error {
	if err := s.initialState(); err != nil {
		return err
	}
	norm := float64(2 * s.n * s.n)
	log := s.Logger.With("mode", Mode)
	step := s.PrintStep()

	var (
		sp        spectrum
		occ       [2][]float64
		mu        float64
		residual  = math.Inf(1)
		converged bool
		iter      int
	)
	evaluate := func() ([2][]float64, error) {
		var err error
		if sp, err = s.diagonalize(); err != nil {
			return [2][]float64{}, err
		}
		if occ, mu, err = s.occupy(sp); err != nil {
			return [2][]float64{}, err
		}
		return s.density(sp, occ), nil
	}

	for iter = 1; iter <= s.p.IterationMax; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := evaluate()
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}
		residual = 0
		for spin := range s.rho {
			r := solver.Mix(s.rho[spin], next[spin], s.p.Mix, norm)
			residual += r * r
		}
		residual = math.Sqrt(residual)
		if iter%step == 0 {
			log.Info("scf step", "iteration", iter, "residual", residual)
		}
		if residual < s.p.EPS {
			converged = true
			break
		}
	}
	if iter > s.p.IterationMax {
		iter = s.p.IterationMax
	}

	// Final spectrum for the mixed state.
	if _, err := evaluate(); err != nil {
		return err
	}
	band := 0.0
	var nel, sz float64
	for spin := range occ {
		for k, f := range occ[spin] {
			band += f * sp.values[spin][k]
			nel += f
			if spin == 0 {
				sz += 0.5 * f
			} else {
				sz -= 0.5 * f
			}
		}
	}

	if converged {
		log.Info("scf converged", "iterations", iter, "residual", residual)
	} else {
		log.Warn("scf did not converge", "iterations", iter, "residual", residual, "eps", s.p.EPS)
	}

	phys := &solver.Physics{
		Energy:      s.energy(band),
		Mu:          mu,
		Ncond:       nel,
		Sz:          sz,
		Residual:    residual,
		Iterations:  iter,
		Converged:   converged,
		Eigenvalues: sp.values,
	}
	s.SetResults(phys, s.green())
	return nil
}

func (s *UHF) green() *solver.Green {
	g := &solver.Green{Cells: [][3]int{{0, 0, 0}}}
	for spin := range s.rho {
		data := make([]complex128, len(s.rho[spin]))
		for i, v := range s.rho[spin] {
			data[i] = complex(v, 0)
		}
		g.Blocks[spin] = []*mat.CDense{mat.NewCDense(s.n, s.n, data)}
	}
	return g
}

// SaveResults writes energies, eigenvalues and the requested <c†_{i,s} c_{j,t}>.
func (s *UHF) SaveResults(out config.Output, info input.GreenInfo) error {
	phys, g, err := s.Results()
	if err != nil {
		return err
	}
	var rows []solver.GreenRow
	if req, ok := info.(*input.SiteGreen); ok {
		for _, idx := range req.OneBody {
			if idx.I < 0 || idx.I >= s.n || idx.J < 0 || idx.J >= s.n {
				return fmt.Errorf("green component sites %d,%d out of range 0..%d", idx.I, idx.J, s.n-1)
			}
			if idx.S < 0 || idx.S > 1 || idx.T < 0 || idx.T > 1 {
				return fmt.Errorf("green component spins %d,%d out of range 0..1", idx.S, idx.T)
			}
			var v complex128
			if idx.S == idx.T {
				v, _ = g.At(idx.S, [3]int{}, idx.I, idx.J)
			}
			rows = append(rows, solver.GreenRow{Index: []int{idx.I, idx.S, idx.J, idx.T}, Value: v})
		}
	} else if info != nil {
		return fmt.Errorf("UHF cannot write green components of type %T", info)
	}
	return solver.Save(out, phys, rows)
}
