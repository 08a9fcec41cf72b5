package params

import (
	"math"
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
)

// Default is one row of the default parameter table.
type Default struct {
	Key   string
	Value any
}

// DefaultTable lists the values seeded for any key the base table lacks.
// 2Sz has no default: nil means the spin sector is not fixed.
var DefaultTable = []Default{
	{Key: "Nsite", Value: int64(0)},
	{Key: "Ne", Value: int64(0)},
	{Key: "Ncond", Value: int64(0)},
	{Key: "2Sz", Value: nil},
	{Key: "Mix", Value: 0.5},
	{Key: "EPS", Value: int64(6)},
	{Key: "Print", Value: int64(0)},
	{Key: "IterationMax", Value: int64(20000)},
	{Key: "RndSeed", Value: int64(1234)},
}

// IntegerKeys are unwrapped from the legacy list encoding and coerced to int64.
var IntegerKeys = []string{"Nsite", "Ne", "2Sz", "Ncond", "EPS", "IterationMax", "Print", "RndSeed"}

// FloatKeys are unwrapped from the legacy list encoding and coerced to float64.
// T is included because ModPara files carry it in the same encoding.
var FloatKeys = []string{"Mix", "T"}

// Canonicalizer merges parameter layers into a canonical Set.
type Canonicalizer struct {
	defaults []Default
}

// NewCanonicalizer returns a Canonicalizer seeded from DefaultTable. Each
// override replaces the default value of the key it names; keys not in the
// table are appended.
func NewCanonicalizer(overrides ...Default) *Canonicalizer {
	defaults := make([]Default, len(DefaultTable))
	copy(defaults, DefaultTable)
	for _, o := range overrides {
		replaced := false
		for i := range defaults {
			if fold(defaults[i].Key) == fold(o.Key) {
				defaults[i].Value = o.Value
				replaced = true
				break
			}
		}
		if !replaced {
			defaults = append(defaults, o)
		}
	}
	return &Canonicalizer{defaults: defaults}
}

// Canonicalize builds the parameter set for one run.
//
// The order is fixed: base values, then defaults for missing keys, then the
// legacy unwrap of IntegerKeys and FloatKeys, then the mode-level overlay,
// then EPS <- 10^(-EPS). Overlay values are taken as given and are never
// unwrapped.
func (c *Canonicalizer) Canonicalize(base, mode map[string]any) (*Set, error) {
	baseSet := SetFromMap(base, SourceBase)

	s := NewSet()
	for _, d := range c.defaults {
		if v, ok := baseSet.Get(d.Key); ok {
			key, _ := baseSet.Key(d.Key)
			s.Put(key, v, SourceBase)
			continue
		}
		s.Put(d.Key, d.Value, SourceDefault)
	}
	for _, key := range baseSet.Keys() {
		if !s.Has(key) {
			v, _ := baseSet.Get(key)
			s.Put(key, v, SourceBase)
		}
	}

	for _, key := range IntegerKeys {
		if err := unwrapInto[int64](s, key); err != nil {
			return nil, err
		}
	}
	for _, key := range FloatKeys {
		if err := unwrapInto[float64](s, key); err != nil {
			return nil, err
		}
	}

	modeKeys := make([]string, 0, len(mode))
	for k := range mode {
		modeKeys = append(modeKeys, k)
	}
	sort.Strings(modeKeys)
	for _, k := range modeKeys {
		s.Put(k, mode[k], SourceMode)
	}

	if err := transformEPS(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Canonicalize runs the default Canonicalizer.
func Canonicalize(base, mode map[string]any) (*Set, error) {
	return NewCanonicalizer().Canonicalize(base, mode)
}

// unwrapInto replaces a single-element sequence under key with its element
// coerced to T. Scalars and nil are left alone.
func unwrapInto[T int64 | float64](s *Set, key string) error {
	v, ok := s.Get(key)
	if !ok || v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	stored, _ := s.Key(key)
	if rv.Len() != 1 {
		return &MalformedValueError{
			Key:    stored,
			Value:  v,
			Reason: "expected a scalar or a single-element list",
		}
	}
	var out T
	if err := mapstructure.WeakDecode(rv.Index(0).Interface(), &out); err != nil {
		return &MalformedValueError{Key: stored, Value: v, Reason: err.Error()}
	}
	s.replace(key, out)
	return nil
}

func transformEPS(s *Set) error {
	v, _ := s.Get("EPS")
	e, ok := toFloat(v)
	if !ok {
		key, _ := s.Key("EPS")
		return &MalformedValueError{Key: key, Value: v, Reason: "EPS must be a number"}
	}
	s.replace("EPS", math.Pow(10, -e))
	return nil
}
