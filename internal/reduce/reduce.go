// Package reduce aggregates time-windowed samples of a data source into a
// single value prior to comparison.
package reduce

import (
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// Method selects how a window of samples collapses into one value.
type Method string

const (
	Latest  Method = "latest"
	Average Method = "average"
	Median  Method = "median"
	Sum     Method = "sum"
	Min     Method = "min"
	Max     Method = "max"
	Std     Method = "std"
)

// Valid reports whether the method is one of the defined reductions.
func (m Method) Valid() bool {
	switch m {
	case Latest, Average, Median, Sum, Min, Max, Std:
		return true
	}
	return false
}

func (m Method) MarshalYAML() (any, error) {
	return string(m), nil
}

func (m *Method) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	parsed := Method(name)
	if !parsed.Valid() {
		return fmt.Errorf("unknown reduce method: %q", name)
	}
	*m = parsed
	return nil
}

// Reduce collapses the sample window according to the method.
func (m Method) Reduce(samples []float64) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("reduce %s: no samples acquired", m)
	}

	switch m {
	case Latest:
		return samples[len(samples)-1], nil
	case Average:
		return mean(samples), nil
	case Median:
		return median(samples), nil
	case Sum:
		var total float64
		for _, s := range samples {
			total += s
		}
		return total, nil
	case Min:
		low := samples[0]
		for _, s := range samples[1:] {
			if s < low {
				low = s
			}
		}
		return low, nil
	case Max:
		high := samples[0]
		for _, s := range samples[1:] {
			if s > high {
				high = s
			}
		}
		return high, nil
	case Std:
		return std(samples), nil
	}
	return 0, fmt.Errorf("unknown reduce method: %q", m)
}

func mean(samples []float64) float64 {
	var total float64
	for _, s := range samples {
		total += s
	}
	return total / float64(len(samples))
}

func median(samples []float64) float64 {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func std(samples []float64) float64 {
	avg := mean(samples)
	var sq float64
	for _, s := range samples {
		sq += (s - avg) * (s - avg)
	}
	return math.Sqrt(sq / float64(len(samples)))
}
