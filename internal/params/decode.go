package params

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Parameters is the typed view of a canonical Set handed to solvers.
// EPS holds the tolerance, not the exponent.
type Parameters struct {
	Nsite        int     `mapstructure:"Nsite"`
	Ne           int     `mapstructure:"Ne"`
	Ncond        int     `mapstructure:"Ncond"`
	TwoSz        *int    `mapstructure:"2Sz"`
	Mix          float64 `mapstructure:"Mix"`
	EPS          float64 `mapstructure:"EPS"`
	Print        int     `mapstructure:"Print"`
	IterationMax int     `mapstructure:"IterationMax"`
	RndSeed      int64   `mapstructure:"RndSeed"`
	T            float64 `mapstructure:"T"`
	CellShape    []int   `mapstructure:"CellShape"`

	// Extra holds keys the typed fields do not cover.
	Extra map[string]any `mapstructure:",remain"`
}

// Decode converts s into Parameters. Field names match keys without regard
// to case, and numeric types are converted weakly.
func (s *Set) Decode() (Parameters, error) {
	var p Parameters
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return Parameters{}, fmt.Errorf("failed to build parameter decoder: %w", err)
	}
	if err := dec.Decode(s.Map()); err != nil {
		return Parameters{}, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return p, nil
}

// SpinSectors splits n electrons into up and down counts for a fixed 2Sz.
func (p Parameters) SpinSectors(n int) (up, down int, err error) {
	if p.TwoSz == nil {
		return 0, 0, fmt.Errorf("2Sz is not set")
	}
	twoSz := *p.TwoSz
	if (n+twoSz)%2 != 0 {
		return 0, 0, fmt.Errorf("Ncond %d and 2Sz %d must have the same parity", n, twoSz)
	}
	return (n + twoSz) / 2, (n - twoSz) / 2, nil
}
