package input

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
	return dir
}

const modpara = `--------------------
Model_Parameters   0
--------------------
HubbardGC
CDataFileHead  zvo
--------------------
Nsite          2
Ncond          2
2Sz            0
Mix            0.5
EPS            8
`

const trans = `========================
NTransfer      4
========================
========i_j_s_tijs======
========================
    0     0     1     0         -1.000000000000000         0.000000000000000
    1     0     0     0         -1.000000000000000         0.000000000000000
    0     1     1     1         -1.000000000000000         0.000000000000000
    1     1     0     1         -1.000000000000000         0.000000000000000
`

const intra = `=============================================
NCoulombIntra          2
=============================================
================== CoulombIntra ================
=============================================
    0         4.000000000000000
    1         4.000000000000000
`

const greenone = `===============================
NCisAjs          2
===============================
======== Green functions ======
===============================
    0     0     0     0
    0     1     0     1
`

func namelistDir(t *testing.T) string {
	t.Helper()
	return writeFiles(t, map[string]string{
		"namelist.def": `ModPara  modpara.def
Trans    trans.def
coulombintra  coulombintra.def
OneBodyG greenone.def
LocSpin  locspn.def
`,
		"modpara.def":      modpara,
		"trans.def":        trans,
		"coulombintra.def": intra,
		"greenone.def":     greenone,
	})
}

func TestNamelistReader_Model(t *testing.T) {
	dir := namelistDir(t)
	r, err := NewNamelistReader(filepath.Join(dir, "namelist.def"))
	require.NoError(t, err)

	mod, err := r.Model()
	require.NoError(t, err)

	assert.Equal(t, []any{int64(2)}, mod["Nsite"])
	assert.Equal(t, []any{int64(0)}, mod["2Sz"])
	assert.Equal(t, []any{0.5}, mod["Mix"])
	assert.Equal(t, []any{int64(8)}, mod["EPS"])
	assert.Equal(t, "zvo", mod["CDataFileHead"])
	assert.NotContains(t, mod, "Model_Parameters")
	assert.NotContains(t, mod, "HubbardGC")
}

func TestNamelistReader_Hamiltonian(t *testing.T) {
	dir := namelistDir(t)
	r, err := NewNamelistReader(filepath.Join(dir, "namelist.def"))
	require.NoError(t, err)

	info, err := r.Hamiltonian()
	require.NoError(t, err)
	lat, ok := info.(*Lattice)
	require.True(t, ok)

	require.Len(t, lat.Transfer, 4)
	assert.Equal(t, Transfer{I: 0, S: 0, J: 1, T: 0, Value: complex(-1, 0)}, lat.Transfer[0])
	assert.Equal(t, []Intra{{I: 0, U: 4}, {I: 1, U: 4}}, lat.CoulombIntra)
	assert.Empty(t, lat.CoulombInter)
	assert.Empty(t, lat.Initial)

	p, ok := r.File(KeyCoulombIntra)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "coulombintra.def"), p)
}

func TestNamelistReader_Green(t *testing.T) {
	dir := namelistDir(t)
	r, err := NewNamelistReader(filepath.Join(dir, "namelist.def"))
	require.NoError(t, err)

	info, err := GetParam(r, SectionOutput)
	require.NoError(t, err)
	g, ok := info.(*SiteGreen)
	require.True(t, ok)
	assert.Equal(t, []GreenIndex{{0, 0, 0, 0}, {0, 1, 0, 1}}, g.OneBody)
}

func TestNamelistReader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing namelist",
			files:   map[string]string{},
			wantErr: "failed to open",
		},
		{
			name:    "missing ModPara keyword",
			files:   map[string]string{"namelist.def": "Trans trans.def\n"},
			wantErr: "required keyword ModPara",
		},
		{
			name:    "keyword without file",
			files:   map[string]string{"namelist.def": "ModPara\n"},
			wantErr: "has no file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, tt.files)
			_, err := NewNamelistReader(filepath.Join(dir, "namelist.def"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNamelistReader_MalformedTransfer(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"namelist.def": "ModPara modpara.def\nTrans trans.def\n",
		"modpara.def":  modpara,
		"trans.def":    "0 0 1 0 abc 0.0\n",
	})
	r, err := NewNamelistReader(filepath.Join(dir, "namelist.def"))
	require.NoError(t, err)

	_, err = r.Hamiltonian()
	var pErr *ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 1, pErr.Line)
}

func TestGetParam_UnknownSection(t *testing.T) {
	dir := namelistDir(t)
	r, err := NewNamelistReader(filepath.Join(dir, "namelist.def"))
	require.NoError(t, err)

	_, err = GetParam(r, "geometry")
	var sErr *UnknownSectionError
	require.True(t, errors.As(err, &sErr))
	assert.Equal(t, "geometry", sErr.Section)
}

const geom = ` 1.0 0.0 0.0
 0.0 1.0 0.0
 0.0 0.0 1.0
1
 0.0 0.0 0.0
`

const hrTransfer = `hopping on a square lattice
1
5
 1 1 1 1 1
 0 0 0 1 1  0.0 0.0
 1 0 0 1 1 -1.0 0.0
-1 0 0 1 1 -1.0 0.0
 0 1 0 1 1 -1.0 0.0
 0 -1 0 1 1 -1.0 0.0
`

const hrIntra = `on-site
1
1
 1
 0 0 0 1 1 4.0 0.0
`

func kspaceInput(dir string) config.Input {
	return config.Input{
		Interaction: config.Interaction{
			PathToInput:  dir,
			Geometry:     "geom.dat",
			Transfer:     "transfer.dat",
			CoulombIntra: "coulombintra.dat",
		},
		Green: config.GreenRequest{OneBodyG: "green.dat"},
	}
}

func TestKSpaceReader(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"geom.dat":         geom,
		"transfer.dat":     hrTransfer,
		"coulombintra.dat": hrIntra,
		"green.dat":        "0 0 0 1 1\n1 0 0 1 1\n",
	})
	r, err := NewKSpaceReader(kspaceInput(dir))
	require.NoError(t, err)

	mod, err := GetParam(r, SectionModel)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Norb": []any{int64(1)}}, mod)

	info, err := r.Hamiltonian()
	require.NoError(t, err)
	k, ok := info.(*KLattice)
	require.True(t, ok)

	assert.Equal(t, 1, k.Norb())
	assert.Equal(t, [3]float64{1, 0, 0}, k.Geometry.Vectors[0])
	require.Len(t, k.Transfer, 5)
	assert.Equal(t, Hopping{R: [3]int{1, 0, 0}, A: 0, B: 0, Value: complex(-1, 0)}, k.Transfer[1])
	require.Len(t, k.CoulombIntra, 1)
	assert.Equal(t, complex(4, 0), k.CoulombIntra[0].Value)
	assert.Empty(t, k.CoulombInter)

	gi, err := r.Green()
	require.NoError(t, err)
	g := gi.(*CellGreen)
	assert.Equal(t, []CellGreenIndex{{R: [3]int{0, 0, 0}}, {R: [3]int{1, 0, 0}}}, g.OneBody)
}

func TestKSpaceReader_Degeneracy(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"geom.dat": geom,
		"transfer.dat": `deg
1
2
 2 1
 1 0 0 1 1 -2.0 0.0
 0 0 0 1 1  0.5 0.0
`,
	})
	in := kspaceInput(dir)
	in.Interaction.CoulombIntra = ""
	in.Green.OneBodyG = ""
	r, err := NewKSpaceReader(in)
	require.NoError(t, err)

	info, err := r.Hamiltonian()
	require.NoError(t, err)
	k := info.(*KLattice)
	require.Len(t, k.Transfer, 2)
	assert.Equal(t, complex(-1, 0), k.Transfer[0].Value)
	assert.Equal(t, complex(0.5, 0), k.Transfer[1].Value)

	gi, err := r.Green()
	require.NoError(t, err)
	assert.Empty(t, gi.(*CellGreen).OneBody)
}

func TestKSpaceReader_Errors(t *testing.T) {
	_, err := NewKSpaceReader(config.Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Geometry")
	assert.Contains(t, err.Error(), "Transfer")

	dir := writeFiles(t, map[string]string{
		"geom.dat":     geom,
		"transfer.dat": "comment\n2\n1\n1\n0 0 0 1 1 1.0 0.0\n",
	})
	in := kspaceInput(dir)
	in.Interaction.CoulombIntra = ""
	r, err := NewKSpaceReader(in)
	require.NoError(t, err)
	_, err = r.Hamiltonian()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "num_wann")
}
