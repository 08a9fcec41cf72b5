// Package params builds the canonical solver-control parameter set.
//
// A run's parameters arrive from up to three places: a built-in default table,
// a base table produced by an input reader (often in the legacy
// single-element-list encoding), and the [mode.param] section of the run
// configuration. This package merges them into one case-insensitive Set,
// converts the EPS exponent into a tolerance, and validates every bound rule.
package params

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
)

// Source records which layer last wrote a parameter.
type Source string

// Parameter sources, lowest priority first.
const (
	SourceDefault Source = "default"
	SourceBase    Source = "base"
	SourceMode    Source = "mode"
)

type entry struct {
	key    string
	value  any
	source Source
}

// Set maps parameter names to scalar values. Lookups fold case; iteration
// reports the key spelling that first introduced the parameter.
// The zero value is not usable; call NewSet.
type Set struct {
	index   map[string]int
	entries []entry
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// SetFromMap builds a Set from m with every value attributed to src.
// Keys are inserted in sorted order so reports are stable.
func SetFromMap(m map[string]any, src Source) *Set {
	s := NewSet()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Put(k, m[k], src)
	}
	return s
}

// fold normalizes a key for comparison. A fresh Caser is used per call
// because a Caser carries state and must not be shared.
func fold(key string) string {
	return cases.Fold().String(key)
}

// Put stores value under key, overwriting any value whose key folds to the
// same string. The originally supplied spelling is kept.
func (s *Set) Put(key string, value any, src Source) {
	f := fold(key)
	if i, ok := s.index[f]; ok {
		s.entries[i].value = value
		s.entries[i].source = src
		return
	}
	s.index[f] = len(s.entries)
	s.entries = append(s.entries, entry{key: key, value: value, source: src})
}

// replace swaps the value of an existing key without touching its source.
func (s *Set) replace(key string, value any) {
	if i, ok := s.index[fold(key)]; ok {
		s.entries[i].value = value
	}
}

// Get returns the value stored under key.
func (s *Set) Get(key string) (any, bool) {
	i, ok := s.index[fold(key)]
	if !ok {
		return nil, false
	}
	return s.entries[i].value, true
}

// Has reports whether key is present, regardless of case.
func (s *Set) Has(key string) bool {
	_, ok := s.index[fold(key)]
	return ok
}

// Source returns the layer that last wrote key.
func (s *Set) Source(key string) (Source, bool) {
	i, ok := s.index[fold(key)]
	if !ok {
		return "", false
	}
	return s.entries[i].source, true
}

// Key returns the stored spelling of key.
func (s *Set) Key(key string) (string, bool) {
	i, ok := s.index[fold(key)]
	if !ok {
		return "", false
	}
	return s.entries[i].key, true
}

// Keys returns the stored keys in insertion order.
func (s *Set) Keys() []string {
	keys := make([]string, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of parameters.
func (s *Set) Len() int {
	return len(s.entries)
}

// Map returns a plain copy keyed by the stored spellings.
func (s *Set) Map() map[string]any {
	m := make(map[string]any, len(s.entries))
	for _, e := range s.entries {
		m[e.key] = e.value
	}
	return m
}

// Float returns key as a float64 when it holds a real number.
func (s *Set) Float(key string) (float64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

func (s *Set) String() string {
	out := "{"
	for i, e := range s.entries {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %v", e.key, e.value)
	}
	return out + "}"
}

// toFloat converts numeric scalars. Booleans, strings and sequences are
// rejected so that a bound check never compares a non-number.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
