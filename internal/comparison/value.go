package comparison

import (
	"fmt"
	"math"
	"strconv"

	"github.com/speedwagon-io/checkout/internal/result"
)

// Value is a single expected value with optional tolerances and a severity
// applied on match, used by value sets.
type Value struct {
	Value       any             `yaml:"value"`
	Description string          `yaml:"description,omitempty"`
	Rtol        *float64        `yaml:"rtol,omitempty"`
	Atol        *float64        `yaml:"atol,omitempty"`
	Severity    result.Severity `yaml:"severity,omitempty"`
}

func (v Value) String() string {
	desc := fmt.Sprintf("%v", v.Value)
	if v.Rtol != nil || v.Atol != nil {
		desc += " within"
		if v.Rtol != nil {
			desc += fmt.Sprintf(" rtol=%v", *v.Rtol)
		}
		if v.Atol != nil {
			desc += fmt.Sprintf(" atol=%v", *v.Atol)
		}
	}
	desc += " -> " + v.Severity.String()
	if v.Description != "" {
		return fmt.Sprintf("%s (%s)", v.Description, desc)
	}
	return desc
}

// Matches compares the acquired value against this one, using the tolerance
// settings when present.
func (v Value) Matches(acquired any) (bool, error) {
	if v.Rtol == nil && v.Atol == nil {
		return equalValues(acquired, v.Value), nil
	}

	got, err := asFloat(acquired)
	if err != nil {
		return false, err
	}
	want, err := asFloat(v.Value)
	if err != nil {
		return false, err
	}

	var rtol, atol float64
	if v.Rtol != nil {
		rtol = *v.Rtol
	}
	if v.Atol != nil {
		atol = *v.Atol
	}
	return isClose(got, want, rtol, atol), nil
}

func isClose(got, want, rtol, atol float64) bool {
	return math.Abs(got-want) <= atol+rtol*math.Abs(want)
}

// equalValues compares numerically when both sides are numeric, so that an
// integer point value still equals a float expectation.
func equalValues(a, b any) bool {
	af, aErr := asFloat(a)
	bf, bErr := asFloat(b)
	if aErr == nil && bErr == nil {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// asFloat coerces the acquired value to a float64 for numeric predicates.
func asFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
