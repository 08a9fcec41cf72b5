package input

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/hwave/internal/config"
)

// Geometry is the unit cell: three lattice vectors and the orbital
// positions in fractional coordinates.
type Geometry struct {
	Vectors   [3][3]float64
	Positions [][3]float64
}

// Norb returns the number of orbitals per cell.
func (g Geometry) Norb() int {
	return len(g.Positions)
}

// Hopping is one element H_{A,B}(R) of a translation-invariant operator.
// Value is already divided by the degeneracy of R.
type Hopping struct {
	R     [3]int
	A, B  int
	Value complex128
}

// KLattice is the Hamiltonian of a periodic model, read from files in the
// Wannier90 hr format.
type KLattice struct {
	Geometry     Geometry
	Transfer     []Hopping
	CoulombIntra []Hopping
	CoulombInter []Hopping
}

// Norb returns the number of orbitals per cell.
func (k *KLattice) Norb() int {
	return k.Geometry.Norb()
}

func (*KLattice) hamiltonian() {}

// CellGreenIndex selects <c†_{A}(0) c_{B}(R)>.
type CellGreenIndex struct {
	R    [3]int
	A, B int
}

// CellGreen lists requested Green's-function components of a periodic model.
type CellGreen struct {
	OneBody []CellGreenIndex
}

func (*CellGreen) green() {}

// KSpaceReader reads the files named under [file.input.interaction].
type KSpaceReader struct {
	dir   string
	files config.Interaction
	green string
}

// NewKSpaceReader checks that the geometry and transfer files are named.
// Files are resolved relative to interaction.path_to_input.
func NewKSpaceReader(in config.Input) (*KSpaceReader, error) {
	ia := in.Interaction
	var missing []error
	if ia.Geometry == "" {
		missing = append(missing, errors.New("file.input.interaction.Geometry is not set"))
	}
	if ia.Transfer == "" {
		missing = append(missing, errors.New("file.input.interaction.Transfer is not set"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}
	return &KSpaceReader{dir: ia.PathToInput, files: ia, green: in.Green.OneBodyG}, nil
}

func (r *KSpaceReader) path(name string) string {
	return filepath.Join(r.dir, name)
}

// Model returns the structure derived from the geometry file: the number
// of orbitals per cell as a single-element list under "Norb".
func (r *KSpaceReader) Model() (map[string]any, error) {
	g, err := readGeometry(r.path(r.files.Geometry))
	if err != nil {
		return nil, err
	}
	return map[string]any{"Norb": []any{int64(g.Norb())}}, nil
}

// Hamiltonian parses geometry and all interaction files.
func (r *KSpaceReader) Hamiltonian() (HamiltonianInfo, error) {
	g, err := readGeometry(r.path(r.files.Geometry))
	if err != nil {
		return nil, err
	}
	k := &KLattice{Geometry: g}

	if k.Transfer, err = readHR(r.path(r.files.Transfer), g.Norb()); err != nil {
		return nil, err
	}
	if r.files.CoulombIntra != "" {
		if k.CoulombIntra, err = readHR(r.path(r.files.CoulombIntra), g.Norb()); err != nil {
			return nil, err
		}
	}
	if r.files.CoulombInter != "" {
		if k.CoulombInter, err = readHR(r.path(r.files.CoulombInter), g.Norb()); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// Green parses the OneBodyG file ("Rx Ry Rz a b", 1-based orbitals).
func (r *KSpaceReader) Green() (GreenInfo, error) {
	g := &CellGreen{}
	if r.green == "" {
		return g, nil
	}
	p := r.path(r.green)
	err := scanLines(p, func(line int, fields []string) error {
		if !isRecord(fields) {
			return nil
		}
		if len(fields) < 5 {
			return &ParseError{Path: p, Line: line, Msg: "expected Rx Ry Rz a b"}
		}
		v, err := parseInts(p, line, fields[:5])
		if err != nil {
			return err
		}
		g.OneBody = append(g.OneBody, CellGreenIndex{R: [3]int{v[0], v[1], v[2]}, A: v[3] - 1, B: v[4] - 1})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// readGeometry parses three lattice vectors, the orbital count and one
// position per orbital.
func readGeometry(path string) (Geometry, error) {
	var g Geometry
	var rows [][]string
	var lines []int
	err := scanLines(path, func(line int, fields []string) error {
		rows = append(rows, fields)
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return g, err
	}
	if len(rows) < 4 {
		return g, &ParseError{Path: path, Line: len(rows), Msg: "geometry needs three lattice vectors and an orbital count"}
	}
	for i := 0; i < 3; i++ {
		if len(rows[i]) < 3 {
			return g, &ParseError{Path: path, Line: lines[i], Msg: "lattice vector needs three components"}
		}
		v, err := parseFloats(path, lines[i], rows[i][:3])
		if err != nil {
			return g, err
		}
		copy(g.Vectors[i][:], v)
	}
	n, err := parseInts(path, lines[3], rows[3][:1])
	if err != nil {
		return g, err
	}
	norb := n[0]
	if norb < 1 || len(rows) < 4+norb {
		return g, &ParseError{Path: path, Line: lines[3], Msg: fmt.Sprintf("expected %d orbital positions", norb)}
	}
	for i := 0; i < norb; i++ {
		row := rows[4+i]
		if len(row) < 3 {
			return g, &ParseError{Path: path, Line: lines[4+i], Msg: "orbital position needs three components"}
		}
		v, err := parseFloats(path, lines[4+i], row[:3])
		if err != nil {
			return g, err
		}
		g.Positions = append(g.Positions, [3]float64{v[0], v[1], v[2]})
	}
	return g, nil
}

// readHR parses a Wannier90 hr file: a comment line, num_wann, nrpts, the
// degeneracy of each R, then "Rx Ry Rz a b re im" records. Orbital indices
// are converted to 0-based.
func readHR(path string, norb int) ([]Hopping, error) {
	var (
		stage  int
		nwann  int
		nrpts  int
		degs   []int
		out    []Hopping
		rIndex = map[[3]int]int{}
	)
	err := scanLines(path, func(line int, fields []string) error {
		switch {
		case stage == 0:
			stage++ // comment
			return nil
		case stage == 1:
			v, err := parseInts(path, line, fields[:1])
			if err != nil {
				return err
			}
			nwann = v[0]
			if nwann != norb {
				return &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("num_wann %d does not match %d orbitals", nwann, norb)}
			}
			stage++
			return nil
		case stage == 2:
			v, err := parseInts(path, line, fields[:1])
			if err != nil {
				return err
			}
			nrpts = v[0]
			stage++
			return nil
		case stage == 3 && len(degs) < nrpts:
			v, err := parseInts(path, line, fields)
			if err != nil {
				return err
			}
			degs = append(degs, v...)
			return nil
		}

		if len(fields) < 7 {
			return &ParseError{Path: path, Line: line, Msg: "expected Rx Ry Rz a b re im"}
		}
		idx, err := parseInts(path, line, fields[:5])
		if err != nil {
			return err
		}
		val, err := parseFloats(path, line, fields[5:7])
		if err != nil {
			return err
		}
		a, b := idx[3]-1, idx[4]-1
		if a < 0 || a >= nwann || b < 0 || b >= nwann {
			return &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("orbital index out of range 1..%d", nwann)}
		}
		R := [3]int{idx[0], idx[1], idx[2]}
		ri, ok := rIndex[R]
		if !ok {
			ri = len(rIndex)
			rIndex[R] = ri
		}
		deg := 1
		if ri < len(degs) && degs[ri] > 0 {
			deg = degs[ri]
		}
		out = append(out, Hopping{R: R, A: a, B: b, Value: complex(val[0], val[1]) / complex(float64(deg), 0)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stage < 3 {
		return nil, &ParseError{Path: path, Msg: "truncated hr header"}
	}
	return out, nil
}

var _ Reader = (*KSpaceReader)(nil)
