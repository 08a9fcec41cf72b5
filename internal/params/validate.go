package params

import (
	"math"
	"reflect"
)

// Lookup resolves a numeric value by name. The bool is false when the key is
// absent; a present but non-numeric value is reported by the validator.
type Lookup func(key string) (any, bool)

// Rule is one bound check. Bound returns false when the bound itself cannot be
// computed (for example when it depends on a non-numeric Nsite), in which case
// the rule is skipped; the dependency gets its own violation.
type Rule struct {
	Key   string
	Kind  BoundKind
	Bound func(Lookup) (float64, bool)
}

func constant(v float64) func(Lookup) (float64, bool) {
	return func(Lookup) (float64, bool) { return v, true }
}

func scaledBy(key string, factor float64) func(Lookup) (float64, bool) {
	return func(get Lookup) (float64, bool) {
		v, ok := get(key)
		if !ok {
			return 0, false
		}
		f, ok := toFloat(v)
		return factor * f, ok
	}
}

// Rules is the bound table, minimums first.
var Rules = []Rule{
	{Key: "T", Kind: BoundMin, Bound: constant(0)},
	{Key: "2Sz", Kind: BoundMin, Bound: scaledBy("Nsite", -1)},
	{Key: "Nsite", Kind: BoundMin, Bound: constant(1)},
	{Key: "Ncond", Kind: BoundMin, Bound: constant(1)},
	{Key: "IterationMax", Kind: BoundMin, Bound: constant(0)},
	{Key: "Mix", Kind: BoundMin, Bound: constant(0)},
	{Key: "print_step", Kind: BoundMin, Bound: constant(1)},
	{Key: "EPS", Kind: BoundAbove, Bound: constant(0)},

	{Key: "2Sz", Kind: BoundMax, Bound: scaledBy("Nsite", 1)},
	{Key: "Ncond", Kind: BoundMax, Bound: scaledBy("Nsite", 1)},
	{Key: "EPS", Kind: BoundMax, Bound: constant(1.0)},
	{Key: "Mix", Kind: BoundMax, Bound: constant(1)},
}

// Validate checks s against Rules. extra supplies values that live outside the
// parameter set, such as print_step from the log settings. Keys that are absent
// or nil are skipped. All violations are collected before returning.
func Validate(s *Set, extra map[string]any) error {
	return ValidateRules(Rules, s, extra)
}

// ValidateRules is Validate with an explicit rule table.
func ValidateRules(rules []Rule, s *Set, extra map[string]any) error {
	get := func(key string) (any, bool) {
		if v, ok := s.Get(key); ok {
			return v, true
		}
		v, ok := extra[key]
		return v, ok
	}

	var violations []Violation
	reported := make(map[string]bool)
	for _, r := range rules {
		v, ok := get(r.Key)
		if !ok || v == nil {
			continue
		}
		key := r.Key
		if stored, ok := s.Key(r.Key); ok {
			key = stored
		}
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			if !reported[key] {
				violations = append(violations, Violation{Key: key, Kind: r.Kind, Value: v, NotNumeric: true})
				reported[key] = true
			}
			continue
		}
		bound, ok := r.Bound(get)
		if !ok {
			continue
		}
		if violates(r.Kind, f, bound) {
			violations = append(violations, Violation{Key: key, Kind: r.Kind, Bound: bound, Value: v})
		}
	}
	if len(violations) > 0 {
		return &BoundsError{Violations: violations}
	}
	return nil
}

func violates(kind BoundKind, f, bound float64) bool {
	switch kind {
	case BoundMin:
		return f < bound
	case BoundAbove:
		return f <= bound
	case BoundMax:
		return f > bound
	}
	return false
}

// ModeChoices enumerates the values accepted in the mode section.
var ModeChoices = []struct {
	Key     string
	Allowed []any
}{
	{Key: "mode", Allowed: []any{"UHF", "UHFk"}},
	{Key: "flag_fock", Allowed: []any{true, false}},
}

// CheckMode verifies the mode name and Fock flag against ModeChoices and
// reports every mismatch at once.
func CheckMode(mode string, flagFock any) error {
	values := map[string]any{"mode": mode, "flag_fock": flagFock}
	var issues []ConsistencyIssue
	for _, c := range ModeChoices {
		v := values[c.Key]
		found := false
		for _, a := range c.Allowed {
			if reflect.DeepEqual(v, a) {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, ConsistencyIssue{Key: c.Key, Value: v, Allowed: c.Allowed})
		}
	}
	if len(issues) > 0 {
		return &ConsistencyError{Issues: issues}
	}
	return nil
}
