// Package config assembles the run configuration: log, mode and file settings
// merged from built-in defaults, the input document, environment variables
// and command-line flags.
package config

import (
	"path/filepath"
)

// Log holds the [log] section.
type Log struct {
	PrintLevel int `koanf:"print_level"`
	PrintStep  int `koanf:"print_step"`
}

// Mode holds the [mode] section. FlagFock is kept as decoded so that a
// non-boolean value can be reported instead of silently coerced.
type Mode struct {
	Mode     string         `koanf:"mode"`
	FlagFock any            `koanf:"flag_fock"`
	Param    map[string]any `koanf:"param"`
}

// Fock reports whether exchange terms are requested.
func (m Mode) Fock() bool {
	b, _ := m.FlagFock.(bool)
	return b
}

// Interaction lists the k-space definition files under [file.input.interaction].
type Interaction struct {
	PathToInput  string `koanf:"path_to_input"`
	Geometry     string `koanf:"geometry"`
	Transfer     string `koanf:"transfer"`
	CoulombIntra string `koanf:"coulombintra"`
	CoulombInter string `koanf:"coulombinter"`
}

// GreenRequest names the file listing requested Green's-function components
// for the k-space reader.
type GreenRequest struct {
	OneBodyG string `koanf:"onebodyg"`
}

// Input holds [file.input].
type Input struct {
	PathToInput string       `koanf:"path_to_input"`
	Namelist    string       `koanf:"namelist"`
	Interaction Interaction  `koanf:"interaction"`
	Green       GreenRequest `koanf:"green"`
}

// Output holds [file.output].
type Output struct {
	PathToOutput string `koanf:"path_to_output"`
	Energy       string `koanf:"energy"`
	Eigen        string `koanf:"eigen"`
	Green        string `koanf:"green"`
	HistoryDB    string `koanf:"history_db"`
}

// Files holds the [file] section.
type Files struct {
	Input  Input  `koanf:"input"`
	Output Output `koanf:"output"`
}

// Run is the fully defaulted configuration of one run. It is not modified
// after Load returns.
type Run struct {
	Log  Log   `koanf:"log"`
	Mode Mode  `koanf:"mode"`
	File Files `koanf:"file"`

	// Provenance records the layer that supplied each leaf key.
	Provenance Provenance `koanf:"-"`
	// SourcePath is the input file, empty when a document was passed directly.
	SourcePath string `koanf:"-"`
}

// HasMode reports whether mode.mode was supplied by any layer.
func (r *Run) HasMode() bool {
	return r.Provenance.Has("mode.mode")
}

// NamelistPath joins the input directory and the namelist file name.
func (r *Run) NamelistPath() string {
	return filepath.Join(r.File.Input.PathToInput, r.File.Input.Namelist)
}

// OutputDir returns the directory results are written to.
func (r *Run) OutputDir() string {
	return r.File.Output.PathToOutput
}

// Origin names a configuration layer.
type Origin string

// Configuration layers, lowest priority first.
const (
	OriginDefault  Origin = "default"
	OriginDocument Origin = "document"
	OriginFile     Origin = "file"
	OriginEnv      Origin = "env"
	OriginFlag     Origin = "flag"
)

// Provenance maps a dotted key to the layer that last set it.
type Provenance map[string]Origin

// Has reports whether key was set by any layer.
func (p Provenance) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Of returns the origin of key, or "" when it was never set.
func (p Provenance) Of(key string) Origin {
	return p[key]
}
