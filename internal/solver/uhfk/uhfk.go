// Package uhfk implements the unrestricted Hartree-Fock solver for
// translation-invariant models in the Bloch basis.
//
// The supercell is CellShape unit cells with periodic boundaries. Each
// k-point gives a Hermitian norb x norb problem, solved through its real
// symmetric embedding; k-points are diagonalised concurrently.
package uhfk

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"runtime"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/input"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/solver"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Mode is the mode name this solver registers under.
const Mode = "UHFk"

// embedWeight is the electron count carried by one eigenvector of the real
// embedding; every complex eigenvector appears twice.
const embedWeight = 0.5

func init() {
	solver.Register(Mode, New)
}

type coulomb struct {
	R    [3]int
	A, B int
	V    float64
}

// UHFk is the k-space solver.
type UHFk struct {
	solver.Base

	lat   *input.KLattice
	p     params.Parameters
	norb  int
	shape [3]int
	kfrac [][3]float64
	fock  bool

	u     []float64
	inter []coulomb
	h0    [][]complex128

	// rho[s][c][a*norb+b] = <c†_{a,s}(0) c_{b,s}(cells[c])>
	cells     [][3]int
	cellIndex map[[3]int]int
	rho       [2][][]complex128

	// dk[s][k][a*norb+b] = <c†_{a,s}(k) c_{b,s}(k)> of the last evaluation.
	dk [2][][]complex128
}

// New builds a UHFk solver. The Hamiltonian must be an *input.KLattice.
func New(in solver.Inputs) (solver.Solver, error) {
	lat, ok := in.Hamiltonian.(*input.KLattice)
	if !ok {
		return nil, fmt.Errorf("UHFk needs a periodic lattice, got %T", in.Hamiltonian)
	}
	if in.Params == nil {
		return nil, fmt.Errorf("UHFk needs a parameter set")
	}
	p, err := in.Params.Decode()
	if err != nil {
		return nil, err
	}
	shape, err := CellShape(p.CellShape)
	if err != nil {
		return nil, err
	}
	if lat.Norb() < 1 {
		return nil, fmt.Errorf("UHFk needs at least one orbital")
	}

	s := &UHFk{
		Base:      solver.NewBase(in),
		lat:       lat,
		p:         p,
		norb:      lat.Norb(),
		shape:     shape,
		fock:      in.Mode.Fock(),
		cellIndex: map[[3]int]int{},
	}
	s.kfrac = kGrid(shape)
	s.track([3]int{})
	if err := s.buildInteractions(); err != nil {
		return nil, err
	}
	if err := s.buildTransfer(); err != nil {
		return nil, err
	}
	return s, nil
}

// CellShape validates a CellShape parameter, padding it to three
// dimensions. An empty shape means a single cell.
func CellShape(v []int) ([3]int, error) {
	shape := [3]int{1, 1, 1}
	if len(v) > 3 {
		return shape, fmt.Errorf("CellShape has %d dimensions, at most 3 are supported", len(v))
	}
	for i, l := range v {
		if l < 1 {
			return shape, fmt.Errorf("CellShape[%d] = %d must be positive", i, l)
		}
		shape[i] = l
	}
	return shape, nil
}

// Cells returns the number of unit cells in a shape.
func Cells(shape [3]int) int {
	return shape[0] * shape[1] * shape[2]
}

func kGrid(shape [3]int) [][3]float64 {
	var out [][3]float64
	for i := 0; i < shape[0]; i++ {
		for j := 0; j < shape[1]; j++ {
			for l := 0; l < shape[2]; l++ {
				out = append(out, [3]float64{
					float64(i) / float64(shape[0]),
					float64(j) / float64(shape[1]),
					float64(l) / float64(shape[2]),
				})
			}
		}
	}
	return out
}

// phase returns exp(i k.R) for the k-point with fractional coordinates f.
func phase(f [3]float64, R [3]int) complex128 {
	x := 2 * math.Pi * (f[0]*float64(R[0]) + f[1]*float64(R[1]) + f[2]*float64(R[2]))
	return cmplx.Rect(1, x)
}

func (s *UHFk) track(R [3]int) {
	if _, ok := s.cellIndex[R]; ok {
		return
	}
	s.cellIndex[R] = len(s.cells)
	s.cells = append(s.cells, R)
}

func (s *UHFk) buildInteractions() error {
	s.u = make([]float64, s.norb)
	for _, h := range s.lat.CoulombIntra {
		if h.R != [3]int{} || h.A != h.B {
			return fmt.Errorf("CoulombIntra must be on-site, got R=%v orbitals %d,%d", h.R, h.A+1, h.B+1)
		}
		if imag(h.Value) != 0 {
			return fmt.Errorf("CoulombIntra for orbital %d must be real", h.A+1)
		}
		s.u[h.A] += real(h.Value)
	}
	for _, h := range s.lat.CoulombInter {
		if imag(h.Value) != 0 {
			return fmt.Errorf("CoulombInter R=%v orbitals %d,%d must be real", h.R, h.A+1, h.B+1)
		}
		s.inter = append(s.inter, coulomb{R: h.R, A: h.A, B: h.B, V: real(h.Value)})
		s.track(h.R)
	}
	return nil
}

func (s *UHFk) buildTransfer() error {
	n := s.norb
	s.h0 = make([][]complex128, len(s.kfrac))
	for k, f := range s.kfrac {
		h := make([]complex128, n*n)
		for _, t := range s.lat.Transfer {
			h[t.A*n+t.B] += t.Value * phase(f, t.R)
		}
		s.h0[k] = h
	}
	return nil
}

func (s *UHFk) initialState() {
	n := s.norb
	nsite := float64(n * len(s.kfrac))
	per := float64(s.p.Ncond) / (2 * nsite)
	rng := rand.New(rand.NewPCG(uint64(s.p.RndSeed), uint64(s.p.RndSeed))) //nolint:gosec // reproducible start, not security
	for spin := range s.rho {
		s.rho[spin] = make([][]complex128, len(s.cells))
		for c := range s.cells {
			s.rho[spin][c] = make([]complex128, n*n)
		}
		for a := 0; a < n; a++ {
			s.rho[spin][0][a*n+a] = complex(per*(0.5+rng.Float64()), 0)
		}
	}
}

func (s *UHFk) density(spin, a int) float64 {
	return real(s.rho[spin][0][a*s.norb+a])
}

// hamiltonian returns the mean-field h_k of one spin.
func (s *UHFk) hamiltonian(spin, k int) []complex128 {
	n := s.norb
	h := make([]complex128, n*n)
	copy(h, s.h0[k])
	other := 1 - spin
	for a, u := range s.u {
		h[a*n+a] += complex(u*s.density(other, a), 0)
	}
	for _, v := range s.inter {
		na := s.density(0, v.A) + s.density(1, v.A)
		nb := s.density(0, v.B) + s.density(1, v.B)
		h[v.A*n+v.A] += complex(0.5*v.V*nb, 0)
		h[v.B*n+v.B] += complex(0.5*v.V*na, 0)
		if s.fock {
			r := s.rho[spin][s.cellIndex[v.R]][v.A*n+v.B]
			ph := phase(s.kfrac[k], v.R)
			half := complex(0.5*v.V, 0)
			h[v.A*n+v.B] -= half * cmplx.Conj(r) * ph
			h[v.B*n+v.A] -= half * r * cmplx.Conj(ph)
		}
	}
	return h
}

// embed returns [[Re h, -Im h], [Im h, Re h]], symmetrised.
func embed(h []complex128, n int) *mat.SymDense {
	m := mat.NewSymDense(2*n, nil)
	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			v := 0.5 * (h[a*n+b] + cmplx.Conj(h[b*n+a]))
			m.SetSym(a, b, real(v))
			m.SetSym(n+a, n+b, real(v))
			m.SetSym(a, n+b, -imag(v))
			m.SetSym(b, n+a, imag(v))
		}
	}
	return m
}

type eigen struct {
	values  []float64
	vectors *mat.Dense
}

// diagonalize solves every (spin, k) problem, at most GOMAXPROCS at a time.
func (s *UHFk) diagonalize(ctx context.Context) ([2][]eigen, error) {
	var out [2][]eigen
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for spin := range out {
		out[spin] = make([]eigen, len(s.kfrac))
		for k := range s.kfrac {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				var es mat.EigenSym
				if ok := es.Factorize(embed(s.hamiltonian(spin, k), s.norb), true); !ok {
					return fmt.Errorf("eigen decomposition failed for spin %d at k-point %d", spin, k)
				}
				vec := mat.NewDense(2*s.norb, 2*s.norb, nil)
				es.VectorsTo(vec)
				out[spin][k] = eigen{values: es.Values(nil), vectors: vec}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

func flatten(es []eigen) []float64 {
	var out []float64
	for _, e := range es {
		out = append(out, e.values...)
	}
	return out
}

// occupy returns occupations laid out like flatten, per spin.
func (s *UHFk) occupy(es [2][]eigen) ([2][]float64, float64, error) {
	var occ [2][]float64
	if s.p.TwoSz != nil {
		up, down, err := s.p.SpinSectors(s.p.Ncond)
		if err != nil {
			return occ, 0, err
		}
		var mu [2]float64
		for spin, count := range [2]int{up, down} {
			o, m, err := solver.Fill(flatten(es[spin]), embedWeight, float64(count), s.p.T)
			if err != nil {
				return occ, 0, err
			}
			occ[spin], mu[spin] = o, m
		}
		return occ, 0.5 * (mu[0] + mu[1]), nil
	}
	up := flatten(es[0])
	all, mu, err := solver.Fill(append(append([]float64{}, up...), flatten(es[1])...), embedWeight, float64(s.p.Ncond), s.p.T)
	if err != nil {
		return occ, 0, err
	}
	occ[0], occ[1] = all[:len(up)], all[len(up):]
	return occ, mu, nil
}

// densityMatrices fills s.dk and returns rho for the tracked cells.
func (s *UHFk) densityMatrices(es [2][]eigen, occ [2][]float64) [2][][]complex128 {
	n := s.norb
	m := 2 * n
	var next [2][][]complex128
	for spin := range es {
		s.dk[spin] = make([][]complex128, len(s.kfrac))
		for k, e := range es[spin] {
			d := make([]complex128, n*n)
			for j := 0; j < m; j++ {
				f := occ[spin][k*m+j]
				if f == 0 {
					continue
				}
				w := complex(embedWeight*f, 0)
				for a := 0; a < n; a++ {
					ua := complex(e.vectors.At(a, j), e.vectors.At(n+a, j))
					for b := 0; b < n; b++ {
						ub := complex(e.vectors.At(b, j), e.vectors.At(n+b, j))
						d[a*n+b] += w * cmplx.Conj(ua) * ub
					}
				}
			}
			s.dk[spin][k] = d
		}
		next[spin] = make([][]complex128, len(s.cells))
		for c, R := range s.cells {
			next[spin][c] = s.rhoAt(spin, R)
		}
	}
	return next
}

// rhoAt returns <c†_{a,s}(0) c_{b,s}(R)> from the last evaluation.
func (s *UHFk) rhoAt(spin int, R [3]int) []complex128 {
	n := s.norb
	out := make([]complex128, n*n)
	scale := complex(1/float64(len(s.kfrac)), 0)
	for k, d := range s.dk[spin] {
		ph := phase(s.kfrac[k], R) * scale
		for i, v := range d {
			out[i] += ph * v
		}
	}
	return out
}

// doubleCounting returns the per-cell interaction energies of rho.
func (s *UHFk) doubleCounting() (intra, inter, fock float64) {
	n := s.norb
	for a, u := range s.u {
		intra += u * s.density(0, a) * s.density(1, a)
	}
	for _, v := range s.inter {
		na := s.density(0, v.A) + s.density(1, v.A)
		nb := s.density(0, v.B) + s.density(1, v.B)
		inter += 0.5 * v.V * na * nb
		if s.fock {
			c := s.cellIndex[v.R]
			for spin := range s.rho {
				r := s.rho[spin][c][v.A*n+v.B]
				fock -= 0.5 * v.V * (real(r)*real(r) + imag(r)*imag(r))
			}
		}
	}
	return intra, inter, fock
}

func (s *UHFk) flatRho(spin int) []complex128 {
	var out []complex128
	for _, block := range s.rho[spin] {
		out = append(out, block...)
	}
	return out
}

// Solve iterates the mean-field equations until the residual drops below
// EPS or IterationMax steps have run.
func (s *UHFk) Solve(ctx context.Context, _ string) error {
	s.initialState()
	n := s.norb
	norm := float64(2 * n * n * len(s.cells))
	log := s.Logger.With("mode", Mode, "kpoints", len(s.kfrac))
	step := s.PrintStep()

	var (
		es        [2][]eigen
		occ       [2][]float64
		mu        float64
		residual  = math.Inf(1)
		converged bool
		iter      int
	)
	evaluate := func() ([2][][]complex128, error) {
		var err error
		if es, err = s.diagonalize(ctx); err != nil {
			return [2][][]complex128{}, err
		}
		if occ, mu, err = s.occupy(es); err != nil {
			return [2][][]complex128{}, err
		}
		return s.densityMatrices(es, occ), nil
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
			prev := s.flatRho(spin)
			var flatNext []complex128
			for _, block := range next[spin] {
				flatNext = append(flatNext, block...)
			}
			r := solver.MixComplex(prev, flatNext, s.p.Mix, norm)
			residual += r * r
			for c := range s.rho[spin] {
				copy(s.rho[spin][c], prev[c*n*n:(c+1)*n*n])
			}
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

	if _, err := evaluate(); err != nil {
		return err
	}

	var band, nel, sz float64
	var eig [2][]float64
	for spin := range es {
		eig[spin] = flatten(es[spin])
		for i, f := range occ[spin] {
			w := embedWeight * f
			band += w * eig[spin][i]
			nel += w
			if spin == 0 {
				sz += 0.5 * w
			} else {
				sz -= 0.5 * w
			}
		}
	}
	intra, inter, fock := s.doubleCounting()
	ncell := float64(len(s.kfrac))
	intra, inter, fock = intra*ncell, inter*ncell, fock*ncell

	if converged {
		log.Info("scf converged", "iterations", iter, "residual", residual)
	} else {
		log.Warn("scf did not converge", "iterations", iter, "residual", residual, "eps", s.p.EPS)
	}

	phys := &solver.Physics{
		Energy: []solver.Term{
			{Name: "Energy_Total", Value: band - intra - inter - fock},
			{Name: "Energy_Band", Value: band},
			{Name: "Energy_CoulombIntra", Value: intra},
			{Name: "Energy_CoulombInter", Value: inter},
			{Name: "Energy_Fock", Value: fock},
		},
		Mu:          mu,
		Ncond:       nel,
		Sz:          sz,
		Residual:    residual,
		Iterations:  iter,
		Converged:   converged,
		Eigenvalues: eig,
	}
	s.SetResults(phys, s.green())
	return nil
}

func (s *UHFk) green() *solver.Green {
	g := &solver.Green{Cells: append([][3]int(nil), s.cells...)}
	for spin := range g.Blocks {
		for _, R := range s.cells {
			g.Blocks[spin] = append(g.Blocks[spin], mat.NewCDense(s.norb, s.norb, s.rhoAt(spin, R)))
		}
	}
	return g
}

// SaveResults writes energies, eigenvalues and the requested
// <c†_{a,s}(0) c_{b,s}(R)> for both spins. Orbitals are written 1-based.
func (s *UHFk) SaveResults(out config.Output, info input.GreenInfo) error {
	phys, _, err := s.Results()
	if err != nil {
		return err
	}
	var rows []solver.GreenRow
	if req, ok := info.(*input.CellGreen); ok {
		n := s.norb
		for _, idx := range req.OneBody {
			if idx.A < 0 || idx.A >= n || idx.B < 0 || idx.B >= n {
				return fmt.Errorf("green component R=%v orbitals %d,%d out of range 1..%d", idx.R, idx.A+1, idx.B+1, n)
			}
			for spin := 0; spin < 2; spin++ {
				v := s.rhoAt(spin, idx.R)[idx.A*n+idx.B]
				rows = append(rows, solver.GreenRow{
					Index: []int{idx.R[0], idx.R[1], idx.R[2], idx.A + 1, idx.B + 1, spin},
					Value: v,
				})
			}
		}
	} else if info != nil {
		return fmt.Errorf("UHFk cannot write green components of type %T", info)
	}
	return solver.Save(out, phys, rows)
}
