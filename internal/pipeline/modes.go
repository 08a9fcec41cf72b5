package pipeline

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/hwave/internal/config"
	"github.com/leapstack-labs/hwave/internal/input"
	"github.com/leapstack-labs/hwave/internal/params"
	"github.com/leapstack-labs/hwave/internal/solver/uhf"
	"github.com/leapstack-labs/hwave/internal/solver/uhfk"
)

// modeSpec binds a mode name to its input reader and parameter rules.
type modeSpec struct {
	name string
	// reader opens the definition files for the run.
	reader func(cfg *config.Run) (input.Reader, error)
	// canonicalize builds the parameter set from the reader's model section
	// and mode.param.
	canonicalize func(model, modeParam map[string]any) (*params.Set, error)
}

var modes = map[string]modeSpec{
	uhf.Mode: {
		name: uhf.Mode,
		reader: func(cfg *config.Run) (input.Reader, error) {
			return input.NewNamelistReader(cfg.NamelistPath())
		},
		canonicalize: func(model, modeParam map[string]any) (*params.Set, error) {
			return params.Canonicalize(model, modeParam)
		},
	},
	uhfk.Mode: {
		name: uhfk.Mode,
		reader: func(cfg *config.Run) (input.Reader, error) {
			return input.NewKSpaceReader(cfg.File.Input)
		},
		canonicalize: kspaceParams,
	},
}

// Modes returns the supported mode names (sorted).
func Modes() []string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// kspaceParams uses mode.param alone on top of the defaults, with the
// Nsite default taken from the geometry: orbitals per cell times cells.
func kspaceParams(model, modeParam map[string]any) (*params.Set, error) {
	norb, err := legacyInt(model["Norb"])
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}

	var shape []int
	if v, ok := params.SetFromMap(modeParam, params.SourceMode).Get("CellShape"); ok && v != nil {
		if err := mapstructure.WeakDecode(v, &shape); err != nil {
			return nil, &params.MalformedValueError{Key: "CellShape", Value: v, Reason: err.Error()}
		}
	}
	cells, err := uhfk.CellShape(shape)
	if err != nil {
		return nil, err
	}

	c := params.NewCanonicalizer(params.Default{Key: "Nsite", Value: int64(norb * uhfk.Cells(cells))})
	return c.Canonicalize(nil, modeParam)
}

// legacyInt reads an integer that may be wrapped in a single-element list.
func legacyInt(v any) (int, error) {
	if list, ok := v.([]any); ok {
		if len(list) != 1 {
			return 0, fmt.Errorf("expected a single value, got %d", len(list))
		}
		v = list[0]
	}
	var n int
	if err := mapstructure.WeakDecode(v, &n); err != nil {
		return 0, err
	}
	return n, nil
}
