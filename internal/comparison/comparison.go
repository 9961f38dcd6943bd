// Package comparison implements the value predicates bound to checkout
// leaves: equality, ordering, ranges and value sets, each with policy
// settings for disconnects and failures.
package comparison

import (
	"errors"
	"fmt"
	"time"

	"github.com/speedwagon-io/checkout/internal/reduce"
	"github.com/speedwagon-io/checkout/internal/result"
)

// Options carries the settings shared by every comparison variant.
type Options struct {
	// Description tied to this comparison.
	Description string `yaml:"description,omitempty"`
	// Invert flips the predicate's outcome.
	Invert bool `yaml:"invert,omitempty"`
	// ReducePeriod, in seconds, acquires samples over a window before
	// comparing. Zero reads a single value.
	ReducePeriod float64 `yaml:"reduce_period,omitempty"`
	// ReduceMethod collapses the sampled window. Ignored without a period.
	ReduceMethod reduce.Method `yaml:"reduce_method,omitempty"`
	// String requests string-coerced values rather than raw ones.
	String bool `yaml:"string,omitempty"`
	// SeverityOnFailure is the severity of a failing (but evaluated)
	// comparison, and of a recoverable lookup failure.
	SeverityOnFailure result.Severity `yaml:"severity_on_failure"`
	// IfDisconnected is the severity when data cannot be acquired at all.
	IfDisconnected result.Severity `yaml:"if_disconnected"`
}

// Common returns the shared settings. Promoted onto every variant.
func (o *Options) Common() *Options {
	return o
}

// Period returns the reduction window as a duration.
func (o *Options) Period() time.Duration {
	return time.Duration(o.ReducePeriod * float64(time.Second))
}

// DefaultOptions are the settings applied when the serialized form omits
// them: failures and disconnects both count as errors.
func DefaultOptions() Options {
	return Options{
		ReduceMethod:      reduce.Average,
		SeverityOnFailure: result.Error,
		IfDisconnected:    result.Error,
	}
}

// Comparison is one predicate over an acquired value. The set of variants is
// closed: all implementations live in this package.
type Comparison interface {
	// Describe renders the predicate in words for result reasons.
	Describe() string
	// Common exposes the shared policy settings.
	Common() *Options

	compare(value any) (bool, error)
}

// SeverityError short-circuits a predicate with an explicit severity, used
// by value sets and warning bands.
type SeverityError struct {
	Severity result.Severity
	Reason   string
}

func (e *SeverityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Severity, e.Reason)
}

// Evaluate runs the predicate against an acquired value.
//
// A nil value is the "no data" sentinel and maps to the comparison's
// if-disconnected severity without invoking the predicate. Predicate faults
// of any kind become internal_error results, never a crash.
func Evaluate(c Comparison, value any, identifier string) result.Result {
	opts := c.Common()
	if value == nil {
		return result.Result{
			Severity: opts.IfDisconnected,
			Reason:   fmt.Sprintf("no data available for %q in comparison %s", identifier, describe(c)),
		}
	}

	passed, err := run(c, value)

	var sevErr *SeverityError
	if errors.As(err, &sevErr) {
		return result.Result{
			Severity: sevErr.Severity,
			Reason:   fmt.Sprintf("value %v %s: %s", value, sevErr.Severity, sevErr.Reason),
		}
	}
	if err != nil {
		return result.Result{
			Severity: result.InternalError,
			Reason:   fmt.Sprintf("comparing %q with %s raised: %v", identifier, describe(c), err),
		}
	}

	if opts.Invert {
		passed = !passed
	}
	if passed {
		return result.Result{Severity: result.Success}
	}

	desc := describe(c)
	if opts.Description != "" {
		desc = fmt.Sprintf("%s (%s)", opts.Description, desc)
	}
	return result.Result{
		Severity: opts.SeverityOnFailure,
		Reason:   fmt.Sprintf("%v failed: %s", value, desc),
	}
}

// run guards the predicate itself: a buggy or type-incompatible comparison
// must surface as an error value, not a panic.
func run(c Comparison, value any) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return c.compare(value)
}

func describe(c Comparison) string {
	return fmt.Sprintf("%T(%s)", c, c.Describe())
}
