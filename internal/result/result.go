// Package result defines the severity scale and combination rules used to
// roll individual check outcomes up into group and file verdicts.
package result

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Severity is the ordered outcome level of a single check or a folded group.
type Severity int

const (
	Success Severity = iota
	Warning
	Error
	InternalError
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case InternalError:
		return "internal_error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts the serialized severity name back to its value.
func ParseSeverity(name string) (Severity, error) {
	switch name {
	case "success":
		return Success, nil
	case "warning":
		return Warning, nil
	case "error":
		return Error, nil
	case "internal_error":
		return InternalError, nil
	}
	return InternalError, fmt.Errorf("unknown severity: %q", name)
}

func (s Severity) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Mode determines how a group's child severities fold into one.
type Mode string

const (
	// ModeAll requires every child to succeed: the group takes the maximum
	// child severity.
	ModeAll Mode = "all"
	// ModeAny requires at least one child to succeed: the group takes the
	// minimum child severity.
	ModeAny Mode = "any"
)

// Result is the outcome of one comparison or one folded subtree.
type Result struct {
	Severity Severity `yaml:"severity" json:"severity"`
	Reason   string   `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// OK reports whether the result is success or warning.
func (r Result) OK() bool {
	return r.Severity < Error
}

// Item is one entry handed to Combine: a result, a raised error, or nothing
// at all (a comparison that never ran).
type Item struct {
	Result *Result
	Err    error
}

// FromResult wraps a produced result for combination.
func FromResult(r Result) Item {
	return Item{Result: &r}
}

// FromError wraps a raised error for combination.
func FromError(err error) Item {
	return Item{Err: err}
}

// Absent marks a child that produced no result at all.
func Absent() Item {
	return Item{}
}

// Combine folds child items into a single severity according to mode.
//
// Any errored or absent child forces Error regardless of mode: a crash or a
// missing result is never silently ignored. An unrecognized mode yields
// InternalError rather than defaulting.
func Combine(mode Mode, items []Item) Severity {
	severities := make([]Severity, 0, len(items))
	for _, item := range items {
		if item.Err != nil || item.Result == nil {
			return Error
		}
		severities = append(severities, item.Result.Severity)
	}

	switch mode {
	case ModeAll:
		return MaxSeverity(severities)
	case ModeAny:
		return MinSeverity(severities)
	}
	return InternalError
}

// MaxSeverity returns the highest severity present, or Success when empty.
func MaxSeverity(severities []Severity) Severity {
	max := Success
	for _, s := range severities {
		if s > max {
			max = s
		}
	}
	return max
}

// MinSeverity returns the lowest severity present, or Success when empty.
func MinSeverity(severities []Severity) Severity {
	if len(severities) == 0 {
		return Success
	}
	min := severities[0]
	for _, s := range severities[1:] {
		if s < min {
			min = s
		}
	}
	return min
}
