package params

import (
	"fmt"
	"strings"
)

// MalformedValueError is returned when a parameter cannot be brought into
// canonical form, e.g. a legacy-encoded key holding a multi-element list.
type MalformedValueError struct {
	Key    string
	Value  any
	Reason string
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("parameter %s has malformed value %v: %s", e.Key, e.Value, e.Reason)
}

// BoundKind distinguishes the direction of a bound rule.
type BoundKind string

// Bound kinds.
const (
	BoundMin BoundKind = "min"
	// BoundAbove excludes the bound itself.
	BoundAbove BoundKind = "above"
	BoundMax   BoundKind = "max"
)

// Violation is one failed bound rule.
type Violation struct {
	Key   string
	Kind  BoundKind
	Bound float64
	Value any
	// NotNumeric is set when the value could not be compared at all.
	NotNumeric bool
}

func (v Violation) String() string {
	if v.NotNumeric {
		return fmt.Sprintf("value of %s must be a finite number, got %v", v.Key, v.Value)
	}
	if v.Kind == BoundAbove {
		return fmt.Sprintf("value of %s must be greater than %g, got %v", v.Key, v.Bound, v.Value)
	}
	if v.Kind == BoundMin {
		return fmt.Sprintf("value of %s must be greater than or equal to %g, got %v", v.Key, v.Bound, v.Value)
	}
	return fmt.Sprintf("value of %s must be smaller than or equal to %g, got %v", v.Key, v.Bound, v.Value)
}

// BoundsError collects every bound violation found in one pass.
type BoundsError struct {
	Violations []Violation
}

func (e *BoundsError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d parameter violation(s):", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

// ConsistencyIssue is a mode-section value outside its fixed enumeration.
type ConsistencyIssue struct {
	Key     string
	Value   any
	Allowed []any
}

func (i ConsistencyIssue) String() string {
	return fmt.Sprintf("%s in mode section is incorrect: got %v, allowed %v", i.Key, i.Value, i.Allowed)
}

// ConsistencyError collects every mode/flag issue.
type ConsistencyError struct {
	Issues []ConsistencyIssue
}

func (e *ConsistencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d mode setting issue(s):", len(e.Issues))
	for _, i := range e.Issues {
		b.WriteString("\n  - ")
		b.WriteString(i.String())
	}
	return b.String()
}
