// Package input reads the model definition files a solver is built from.
//
// Two readers exist: NamelistReader for real-space UHF runs, driven by a
// namelist.def index, and KSpaceReader for UHFk runs, driven by the
// [file.input.interaction] section. Both expose the same three sections
// through GetParam: "mod", "ham" and "output".
package input

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Section names accepted by GetParam.
const (
	SectionModel       = "mod"
	SectionHamiltonian = "ham"
	SectionOutput      = "output"
)

// HamiltonianInfo describes the one- and two-body terms of a model. The
// pipeline passes it to the solver without looking inside.
type HamiltonianInfo interface {
	hamiltonian()
}

// GreenInfo lists the Green's-function components to write after a solve.
type GreenInfo interface {
	green()
}

// Reader produces the descriptors for one run.
type Reader interface {
	// Model returns raw model parameters. Numeric values from definition
	// files are single-element lists.
	Model() (map[string]any, error)
	Hamiltonian() (HamiltonianInfo, error)
	Green() (GreenInfo, error)
}

// UnknownSectionError is returned by GetParam for a section other than
// mod, ham or output.
type UnknownSectionError struct {
	Section string
}

func (e *UnknownSectionError) Error() string {
	return fmt.Sprintf("unknown input section %q (expected %s, %s or %s)",
		e.Section, SectionModel, SectionHamiltonian, SectionOutput)
}

// GetParam returns the descriptor for section.
func GetParam(r Reader, section string) (any, error) {
	switch section {
	case SectionModel:
		return r.Model()
	case SectionHamiltonian:
		return r.Hamiltonian()
	case SectionOutput:
		return r.Green()
	default:
		return nil, &UnknownSectionError{Section: section}
	}
}

// ParseError points at a malformed line of a definition file.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// scanLines calls fn with the whitespace-separated fields of every
// non-blank line.
func scanLines(path string, fn func(line int, fields []string) error) error {
	f, err := os.Open(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// isRecord reports whether a line carries data: header, separator and
// comment lines do not start with an integer.
func isRecord(fields []string) bool {
	_, err := strconv.Atoi(fields[0])
	return err == nil
}

func parseInts(path string, line int, fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("expected integer, got %q", f)}
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(path string, line int, fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, &ParseError{Path: path, Line: line, Msg: fmt.Sprintf("expected number, got %q", f)}
		}
		out[i] = v
	}
	return out, nil
}

// scalar parses a definition-file value: integers first, then floats, and
// anything else is kept as text.
func scalar(s string) any {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}
