package comparison

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/speedwagon-io/checkout/internal/result"
)

func ptr(f float64) *float64 { return &f }

func TestEvaluate(t *testing.T) {
	t.Run("equals", func(t *testing.T) {
		c := &Equals{Options: DefaultOptions(), Value: 3}
		assert.Equal(t, result.Success, Evaluate(c, 3, "pt").Severity)
		assert.Equal(t, result.Success, Evaluate(c, 3.0, "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, 4, "pt").Severity)
	})

	t.Run("equals with tolerance", func(t *testing.T) {
		c := &Equals{Options: DefaultOptions(), Value: 10.0, Atol: ptr(0.5)}
		assert.Equal(t, result.Success, Evaluate(c, 10.4, "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, 10.6, "pt").Severity)
	})

	t.Run("invert", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Invert = true
		c := &Equals{Options: opts, Value: 3}
		assert.Equal(t, result.Error, Evaluate(c, 3, "pt").Severity)
		assert.Equal(t, result.Success, Evaluate(c, 4, "pt").Severity)
	})

	t.Run("not equals", func(t *testing.T) {
		c := &NotEquals{Options: DefaultOptions(), Value: "fault"}
		assert.Equal(t, result.Success, Evaluate(c, "ok", "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, "fault", "pt").Severity)
	})

	t.Run("ordering", func(t *testing.T) {
		assert.Equal(t, result.Success,
			Evaluate(&Greater{Options: DefaultOptions(), Value: 5}, 6, "pt").Severity)
		assert.Equal(t, result.Error,
			Evaluate(&Greater{Options: DefaultOptions(), Value: 5}, 5, "pt").Severity)
		assert.Equal(t, result.Success,
			Evaluate(&GreaterOrEqual{Options: DefaultOptions(), Value: 5}, 5, "pt").Severity)
		assert.Equal(t, result.Success,
			Evaluate(&Less{Options: DefaultOptions(), Value: 5}, 4, "pt").Severity)
		assert.Equal(t, result.Success,
			Evaluate(&LessOrEqual{Options: DefaultOptions(), Value: 5}, 5, "pt").Severity)
	})

	t.Run("range", func(t *testing.T) {
		c := &Range{Options: DefaultOptions(), Low: 0, High: 100, Inclusive: true}
		assert.Equal(t, result.Success, Evaluate(c, 50, "pt").Severity)
		assert.Equal(t, result.Success, Evaluate(c, 0, "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, 101, "pt").Severity)
	})

	t.Run("range exclusive", func(t *testing.T) {
		c := &Range{Options: DefaultOptions(), Low: 0, High: 100}
		assert.Equal(t, result.Error, Evaluate(c, 0, "pt").Severity)
	})

	t.Run("range warning bands", func(t *testing.T) {
		c := &Range{
			Options: DefaultOptions(),
			Low:     0, High: 100,
			WarnLow: ptr(10.0), WarnHigh: ptr(90.0),
			Inclusive: true,
		}
		assert.Equal(t, result.Success, Evaluate(c, 50, "pt").Severity)
		assert.Equal(t, result.Warning, Evaluate(c, 5, "pt").Severity)
		assert.Equal(t, result.Warning, Evaluate(c, 95, "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, -5, "pt").Severity)
	})

	t.Run("any value", func(t *testing.T) {
		c := &AnyValue{Options: DefaultOptions(), Values: []any{"open", "closed"}}
		assert.Equal(t, result.Success, Evaluate(c, "open", "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, "moving", "pt").Severity)
	})

	t.Run("value set severities in order", func(t *testing.T) {
		c := &ValueSet{Options: DefaultOptions(), Values: []Value{
			{Value: 1, Severity: result.Success},
			{Value: 2, Severity: result.Warning},
			{Value: 3, Severity: result.Error},
		}}
		assert.Equal(t, result.Success, Evaluate(c, 1, "pt").Severity)
		assert.Equal(t, result.Warning, Evaluate(c, 2, "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, 3, "pt").Severity)
		assert.Equal(t, result.Error, Evaluate(c, 4, "pt").Severity)
	})
}

func TestEvaluateFaults(t *testing.T) {
	t.Run("nil data maps to if_disconnected", func(t *testing.T) {
		opts := DefaultOptions()
		opts.IfDisconnected = result.Warning
		c := &Equals{Options: opts, Value: 3}
		res := Evaluate(c, nil, "pt")
		assert.Equal(t, result.Warning, res.Severity)
		assert.Contains(t, res.Reason, "pt")
	})

	t.Run("non-numeric value for numeric predicate", func(t *testing.T) {
		c := &Greater{Options: DefaultOptions(), Value: 5}
		res := Evaluate(c, "not-a-number", "pt")
		assert.Equal(t, result.InternalError, res.Severity)
		assert.Contains(t, res.Reason, "pt")
	})

	t.Run("failure severity is configurable", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SeverityOnFailure = result.Warning
		c := &Equals{Options: opts, Value: 3}
		assert.Equal(t, result.Warning, Evaluate(c, 4, "pt").Severity)
	})
}

func TestListRoundTrip(t *testing.T) {
	src := `
- equals:
    value: 3
    atol: 0.1
    if_disconnected: warning
- range:
    low: 0
    high: 10
- greater:
    value: 1.5
    severity_on_failure: warning
`
	var list List
	require.NoError(t, yaml.Unmarshal([]byte(src), &list))
	require.Len(t, list, 3)

	eq, ok := list[0].(*Equals)
	require.True(t, ok)
	assert.Equal(t, 3, eq.Value)
	require.NotNil(t, eq.Atol)
	assert.Equal(t, 0.1, *eq.Atol)
	assert.Equal(t, result.Warning, eq.IfDisconnected)
	assert.Equal(t, result.Error, eq.SeverityOnFailure)

	rng, ok := list[1].(*Range)
	require.True(t, ok)
	assert.True(t, rng.Inclusive, "inclusive defaults on")

	gt, ok := list[2].(*Greater)
	require.True(t, ok)
	assert.Equal(t, result.Warning, gt.SeverityOnFailure)

	out, err := yaml.Marshal(list)
	require.NoError(t, err)

	var again List
	require.NoError(t, yaml.Unmarshal(out, &again))
	require.Len(t, again, 3)
	assert.IsType(t, &Equals{}, again[0])
	assert.IsType(t, &Range{}, again[1])
	assert.IsType(t, &Greater{}, again[2])
}

func TestDecodeRejectsUnknown(t *testing.T) {
	src := `
- resembles:
    value: 3
`
	var list List
	err := yaml.Unmarshal([]byte(src), &list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resembles")
}
