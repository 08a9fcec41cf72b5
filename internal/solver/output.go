package solver

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/hwave/internal/config"
)

// GreenRow is one written Green's-function component: its integer labels
// followed by the value.
type GreenRow struct {
	Index []int
	Value complex128
}

// writeLines creates path and streams lines produced by fn into it.
func writeLines(path string, fn func(w *bufio.Writer) error) error {
	f, err := os.Create(path) //nolint:gosec // path comes from the run configuration
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := fn(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteEnergy writes "name = value" lines for every energy term followed by
// the electron count and spin.
func WriteEnergy(path string, p *Physics) error {
	return writeLines(path, func(w *bufio.Writer) error {
		for _, t := range p.Energy {
			if _, err := fmt.Fprintf(w, "%s = %.16g\n", t.Name, t.Value); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "NCond = %.16g\nSz = %.16g\n", p.Ncond, p.Sz)
		return err
	})
}

// WriteEigen writes one "spin index value" line per eigenvalue.
func WriteEigen(path string, values [2][]float64) error {
	return writeLines(path, func(w *bufio.Writer) error {
		for s, vs := range values {
			for i, v := range vs {
				if _, err := fmt.Fprintf(w, "%d %d %.16g\n", s, i, v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteGreen writes the labels of each row followed by the real and
// imaginary parts of its value.
func WriteGreen(path string, rows []GreenRow) error {
	return writeLines(path, func(w *bufio.Writer) error {
		for _, r := range rows {
			for _, i := range r.Index {
				if _, err := fmt.Fprintf(w, "%4d ", i); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "% .16e % .16e\n", real(r.Value), imag(r.Value)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Save writes the energy file, the eigenvalue file when configured, and the
// Green's-function file when rows were requested. Empty file names skip
// the corresponding output.
func Save(out config.Output, p *Physics, rows []GreenRow) error {
	if p == nil {
		return ErrNotSolved
	}
	dir := out.PathToOutput
	if out.Energy != "" {
		if err := WriteEnergy(filepath.Join(dir, out.Energy), p); err != nil {
			return err
		}
	}
	if out.Eigen != "" {
		if err := WriteEigen(filepath.Join(dir, out.Eigen), p.Eigenvalues); err != nil {
			return err
		}
	}
	if out.Green != "" && len(rows) > 0 {
		if err := WriteGreen(filepath.Join(dir, out.Green), rows); err != nil {
			return err
		}
	}
	return nil
}
