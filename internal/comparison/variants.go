package comparison

import (
	"fmt"
	"strings"

	"github.com/speedwagon-io/checkout/internal/result"
)

// Equals passes when the acquired value matches the expectation, optionally
// within relative/absolute tolerances.
type Equals struct {
	Options `yaml:",inline"`

	Value any      `yaml:"value"`
	Rtol  *float64 `yaml:"rtol,omitempty"`
	Atol  *float64 `yaml:"atol,omitempty"`
}

func (c *Equals) expected() Value {
	return Value{Value: c.Value, Rtol: c.Rtol, Atol: c.Atol}
}

func (c *Equals) Describe() string {
	word := "equal to"
	if c.Invert {
		word = "not equal to"
	}
	return fmt.Sprintf("%s %s", word, c.expected())
}

func (c *Equals) compare(value any) (bool, error) {
	return c.expected().Matches(value)
}

// NotEquals is the readable shortcut for an inverted Equals.
type NotEquals struct {
	Options `yaml:",inline"`

	Value any      `yaml:"value"`
	Rtol  *float64 `yaml:"rtol,omitempty"`
	Atol  *float64 `yaml:"atol,omitempty"`
}

func (c *NotEquals) expected() Value {
	return Value{Value: c.Value, Rtol: c.Rtol, Atol: c.Atol}
}

func (c *NotEquals) Describe() string {
	word := "not equal to"
	if c.Invert {
		word = "equal to"
	}
	return fmt.Sprintf("%s %s", word, c.expected())
}

func (c *NotEquals) compare(value any) (bool, error) {
	matched, err := c.expected().Matches(value)
	return !matched, err
}

// Greater passes when value > the configured threshold.
type Greater struct {
	Options `yaml:",inline"`

	Value float64 `yaml:"value"`
}

func (c *Greater) Describe() string { return fmt.Sprintf("> %v", c.Value) }

func (c *Greater) compare(value any) (bool, error) {
	v, err := asFloat(value)
	if err != nil {
		return false, err
	}
	return v > c.Value, nil
}

// GreaterOrEqual passes when value >= the configured threshold.
type GreaterOrEqual struct {
	Options `yaml:",inline"`

	Value float64 `yaml:"value"`
}

func (c *GreaterOrEqual) Describe() string { return fmt.Sprintf(">= %v", c.Value) }

func (c *GreaterOrEqual) compare(value any) (bool, error) {
	v, err := asFloat(value)
	if err != nil {
		return false, err
	}
	return v >= c.Value, nil
}

// Less passes when value < the configured threshold.
type Less struct {
	Options `yaml:",inline"`

	Value float64 `yaml:"value"`
}

func (c *Less) Describe() string { return fmt.Sprintf("< %v", c.Value) }

func (c *Less) compare(value any) (bool, error) {
	v, err := asFloat(value)
	if err != nil {
		return false, err
	}
	return v < c.Value, nil
}

// LessOrEqual passes when value <= the configured threshold.
type LessOrEqual struct {
	Options `yaml:",inline"`

	Value float64 `yaml:"value"`
}

func (c *LessOrEqual) Describe() string { return fmt.Sprintf("<= %v", c.Value) }

func (c *LessOrEqual) compare(value any) (bool, error) {
	v, err := asFloat(value)
	if err != nil {
		return false, err
	}
	return v <= c.Value, nil
}

// Range passes when the value lies within [low, high], with optional warning
// bands near the edges:
//
//	low <= value <= warn_low   -> warning
//	warn_high <= value <= high -> warning
type Range struct {
	Options `yaml:",inline"`

	Low       float64  `yaml:"low"`
	High      float64  `yaml:"high"`
	WarnLow   *float64 `yaml:"warn_low,omitempty"`
	WarnHigh  *float64 `yaml:"warn_high,omitempty"`
	Inclusive bool     `yaml:"inclusive"`
}

func (c *Range) Describe() string {
	open, close := "[", "]"
	if !c.Inclusive {
		open, close = "(", ")"
	}
	desc := fmt.Sprintf("inside %s%v, %v%s", open, c.Low, c.High, close)
	if c.WarnLow != nil && c.WarnHigh != nil {
		desc += fmt.Sprintf(", warning outside [%v, %v]", *c.WarnLow, *c.WarnHigh)
	}
	return desc
}

func (c *Range) contains(v, low, high float64) bool {
	if c.Inclusive {
		return low <= v && v <= high
	}
	return low < v && v < high
}

func (c *Range) compare(value any) (bool, error) {
	v, err := asFloat(value)
	if err != nil {
		return false, err
	}
	if !c.contains(v, c.Low, c.High) {
		return false, nil
	}
	if c.WarnLow != nil && c.WarnHigh != nil {
		if c.contains(v, c.Low, *c.WarnLow) || c.contains(v, *c.WarnHigh, c.High) {
			return true, &SeverityError{
				Severity: result.Warning,
				Reason:   fmt.Sprintf("within warning band of %s", c.Describe()),
			}
		}
	}
	return true, nil
}

// AnyValue passes when the value matches any entry in the list.
type AnyValue struct {
	Options `yaml:",inline"`

	Values []any `yaml:"values"`
}

func (c *AnyValue) Describe() string {
	parts := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return "one of " + strings.Join(parts, ", ")
}

func (c *AnyValue) compare(value any) (bool, error) {
	for _, expected := range c.Values {
		if equalValues(value, expected) {
			return true, nil
		}
	}
	return false, nil
}

// ValueSet passes when the value matches any entry; the first matching
// entry's severity is applied, so earlier entries take priority.
type ValueSet struct {
	Options `yaml:",inline"`

	Values []Value `yaml:"values"`
}

func (c *ValueSet) Describe() string {
	parts := make([]string, 0, len(c.Values))
	for _, v := range c.Values {
		parts = append(parts, v.String())
	}
	return "any of: " + strings.Join(parts, "; ")
}

func (c *ValueSet) compare(value any) (bool, error) {
	for _, expected := range c.Values {
		matched, err := expected.Matches(value)
		if err != nil {
			return false, err
		}
		if !matched {
			continue
		}
		if expected.Severity != result.Success {
			return true, &SeverityError{
				Severity: expected.Severity,
				Reason:   fmt.Sprintf("matched %s", expected),
			}
		}
		return true, nil
	}
	return false, nil
}
