package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Two-site Hubbard model in the namelist format, hopping -1, U = 4.
const (
	modparaDef = `--------------------
Model_Parameters   0
--------------------
HubbardGC
--------------------
Nsite          2
Ncond          2
2Sz            0
Mix            0.5
EPS            10
IterationMax   2000
RndSeed        1234
`
	transDef = `========================
NTransfer      4
========================
========i_j_s_tijs======
========================
    0     0     1     0         -1.000000000000000         0.000000000000000
    1     0     0     0         -1.000000000000000         0.000000000000000
    0     1     1     1         -1.000000000000000         0.000000000000000
    1     1     0     1         -1.000000000000000         0.000000000000000
`
	coulombIntraDef = `=============================================
NCoulombIntra          2
=============================================
================== CoulombIntra ================
=============================================
    0         4.000000000000000
    1         4.000000000000000
`
	greenOneDef = `===============================
NCisAjs          2
===============================
======== Green functions ======
===============================
    0     0     0     0
    0     1     0     1
`
	namelistDef = `ModPara       modpara.def
Trans         trans.def
CoulombIntra  coulombintra.def
OneBodyG      greenone.def
`
)

// One-orbital chain in the Wannier90 hr format, hopping -1, U = 2.
const (
	geometryDat = ` 1.0 0.0 0.0
 0.0 1.0 0.0
 0.0 0.0 1.0
1
 0.0 0.0 0.0
`
	transferHR = `chain hopping
1
2
 1 1
 1 0 0 1 1 -1.0 0.0
-1 0 0 1 1 -1.0 0.0
`
	coulombIntraHR = `on-site U
1
1
 1
 0 0 0 1 1 2.0 0.0
`
	greenOneHR = `0 0 0 1 1
1 0 0 1 1
`
)

// WriteFiles writes name -> content pairs under dir.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

// SetupUHFProject creates a temporary UHF run: definition files under
// stan/ and an input.toml that points at them. It returns the input path.
func SetupUHFProject(t testing.TB, mode string) string {
	t.Helper()
	dir := t.TempDir()
	WriteFiles(t, dir, map[string]string{
		"stan/namelist.def":     namelistDef,
		"stan/modpara.def":      modparaDef,
		"stan/trans.def":        transDef,
		"stan/coulombintra.def": coulombIntraDef,
		"stan/greenone.def":     greenOneDef,
		"input.toml": `[log]
print_level = 1
print_step = 100

[mode]
mode = "` + mode + `"

[file.input]
path_to_input = "` + filepath.ToSlash(filepath.Join(dir, "stan")) + `"

[file.output]
path_to_output = "` + filepath.ToSlash(filepath.Join(dir, "output")) + `"
`,
	})
	return filepath.Join(dir, "input.toml")
}

// SetupUHFkProject creates a temporary UHFk run on a four-cell chain and
// returns the input path.
func SetupUHFkProject(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	WriteFiles(t, dir, map[string]string{
		"dir-model/geom.dat":         geometryDat,
		"dir-model/transfer.dat":     transferHR,
		"dir-model/coulombintra.dat": coulombIntraHR,
		"dir-model/green.dat":        greenOneHR,
		"input.toml": `[log]
print_level = 1
print_step = 100

[mode]
mode = "UHFk"

[mode.param]
CellShape = [4, 1, 1]
Ncond = 4
2Sz = 0
EPS = 10
IterationMax = 2000

[file.input.interaction]
path_to_input = "` + filepath.ToSlash(filepath.Join(dir, "dir-model")) + `"
Geometry = "geom.dat"
Transfer = "transfer.dat"
CoulombIntra = "coulombintra.dat"

[file.input.green]
OneBodyG = "green.dat"

[file.output]
path_to_output = "` + filepath.ToSlash(filepath.Join(dir, "output")) + `"
`,
	})
	return filepath.Join(dir, "input.toml")
}
