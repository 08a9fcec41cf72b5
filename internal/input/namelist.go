package input

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Namelist keywords.
const (
	KeyModPara      = "ModPara"
	KeyTrans        = "Trans"
	KeyCoulombIntra = "CoulombIntra"
	KeyCoulombInter = "CoulombInter"
	KeyOneBodyG     = "OneBodyG"
	KeyInitial      = "Initial"
)

var namelistKeys = []string{KeyModPara, KeyTrans, KeyCoulombIntra, KeyCoulombInter, KeyOneBodyG, KeyInitial}

// Transfer is one hopping term c†_{I,S} c_{J,T}, or one element of an
// initial one-body Green's function.
type Transfer struct {
	I, S, J, T int
	Value      complex128
}

// Intra is an on-site Coulomb term U n_{I,up} n_{I,down}.
type Intra struct {
	I int
	U float64
}

// Inter is an inter-site Coulomb term V n_I n_J.
type Inter struct {
	I, J int
	V    float64
}

// Lattice is the real-space Hamiltonian read from namelist files.
type Lattice struct {
	Transfer     []Transfer
	CoulombIntra []Intra
	CoulombInter []Inter
	// Initial is an optional starting one-body Green's function.
	Initial []Transfer
}

func (*Lattice) hamiltonian() {}

// GreenIndex selects the component <c†_{I,S} c_{J,T}>.
type GreenIndex struct {
	I, S, J, T int
}

// SiteGreen lists requested real-space Green's-function components.
type SiteGreen struct {
	OneBody []GreenIndex
}

func (*SiteGreen) green() {}

// NamelistReader reads a namelist.def index and the files it names.
// File names are resolved relative to the namelist's directory.
type NamelistReader struct {
	path  string
	files map[string]string
}

// NewNamelistReader parses the namelist at path. Unknown keywords are
// ignored; ModPara and Trans are required.
func NewNamelistReader(path string) (*NamelistReader, error) {
	r := &NamelistReader{path: path, files: map[string]string{}}
	dir := filepath.Dir(path)

	err := scanLines(path, func(line int, fields []string) error {
		if strings.HasPrefix(fields[0], "#") {
			return nil
		}
		key, ok := canonicalKey(fields[0])
		if !ok {
			return nil
		}
		if len(fields) < 2 {
			return &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("keyword %s has no file", key)}
		}
		r.files[key] = filepath.Join(dir, fields[1])
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, key := range []string{KeyModPara, KeyTrans} {
		if _, ok := r.files[key]; !ok {
			return nil, fmt.Errorf("%s: required keyword %s is missing", path, key)
		}
	}
	return r, nil
}

func canonicalKey(s string) (string, bool) {
	for _, k := range namelistKeys {
		if strings.EqualFold(k, s) {
			return k, true
		}
	}
	return "", false
}

// File returns the resolved path for a namelist keyword.
func (r *NamelistReader) File(key string) (string, bool) {
	p, ok := r.files[key]
	return p, ok
}

// Model parses the ModPara file. Each "<name> <value>" line becomes one
// entry; numeric values are wrapped in a single-element list.
func (r *NamelistReader) Model() (map[string]any, error) {
	path := r.files[KeyModPara]
	out := map[string]any{}
	err := scanLines(path, func(_ int, fields []string) error {
		if len(fields) < 2 || strings.HasPrefix(fields[0], "-") || strings.HasPrefix(fields[0], "#") {
			return nil
		}
		if strings.EqualFold(fields[0], "Model_Parameters") {
			return nil
		}
		v := scalar(fields[1])
		if _, isText := v.(string); isText {
			out[fields[0]] = v
		} else {
			out[fields[0]] = []any{v}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Hamiltonian parses the transfer, Coulomb and initial-state files.
func (r *NamelistReader) Hamiltonian() (HamiltonianInfo, error) {
	lat := &Lattice{}
	var err error

	if lat.Transfer, err = readTransfers(r.files[KeyTrans]); err != nil {
		return nil, err
	}
	if p, ok := r.files[KeyInitial]; ok {
		if lat.Initial, err = readTransfers(p); err != nil {
			return nil, err
		}
	}
	if p, ok := r.files[KeyCoulombIntra]; ok {
		err = scanRecords(p, 2, func(line int, fields []string) error {
			idx, err := parseInts(p, line, fields[:1])
			if err != nil {
				return err
			}
			v, err := parseFloats(p, line, fields[1:2])
			if err != nil {
				return err
			}
			lat.CoulombIntra = append(lat.CoulombIntra, Intra{I: idx[0], U: v[0]})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if p, ok := r.files[KeyCoulombInter]; ok {
		err = scanRecords(p, 3, func(line int, fields []string) error {
			idx, err := parseInts(p, line, fields[:2])
			if err != nil {
				return err
			}
			v, err := parseFloats(p, line, fields[2:3])
			if err != nil {
				return err
			}
			lat.CoulombInter = append(lat.CoulombInter, Inter{I: idx[0], J: idx[1], V: v[0]})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return lat, nil
}

// Green parses the OneBodyG file. Without one, no components are requested.
func (r *NamelistReader) Green() (GreenInfo, error) {
	g := &SiteGreen{}
	p, ok := r.files[KeyOneBodyG]
	if !ok {
		return g, nil
	}
	err := scanRecords(p, 4, func(line int, fields []string) error {
		idx, err := parseInts(p, line, fields[:4])
		if err != nil {
			return err
		}
		g.OneBody = append(g.OneBody, GreenIndex{I: idx[0], S: idx[1], J: idx[2], T: idx[3]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// scanRecords is scanLines restricted to data lines with at least n fields.
func scanRecords(path string, n int, fn func(line int, fields []string) error) error {
	return scanLines(path, func(line int, fields []string) error {
		if !isRecord(fields) {
			return nil
		}
		if len(fields) < n {
			return &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("expected %d fields, got %d", n, len(fields))}
		}
		return fn(line, fields)
	})
}

// readTransfers parses "i s j t re im" lines.
func readTransfers(path string) ([]Transfer, error) {
	var out []Transfer
	err := scanRecords(path, 6, func(line int, fields []string) error {
		idx, err := parseInts(path, line, fields[:4])
		if err != nil {
			return err
		}
		v, err := parseFloats(path, line, fields[4:6])
		if err != nil {
			return err
		}
		out = append(out, Transfer{I: idx[0], S: idx[1], J: idx[2], T: idx[3], Value: complex(v[0], v[1])})
		return nil
	})
	return out, err
}

var _ Reader = (*NamelistReader)(nil)
