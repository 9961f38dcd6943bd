package report

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/checkout/internal/cache"
	"github.com/speedwagon-io/checkout/internal/checkout"
	"github.com/speedwagon-io/checkout/internal/comparison"
	"github.com/speedwagon-io/checkout/internal/device"
	"github.com/speedwagon-io/checkout/internal/result"
	"github.com/speedwagon-io/checkout/internal/signal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticSignal struct {
	name  string
	value any
}

func (s *staticSignal) Name() string                          { return s.name }
func (s *staticSignal) Read(ctx context.Context) (any, error) { return s.value, nil }

func ranFile(t *testing.T) *checkout.PreparedFile {
	t.Helper()

	eq := &comparison.Equals{Options: comparison.DefaultOptions(), Value: 5}
	file := &checkout.File{Root: checkout.Group{
		Metadata: checkout.Metadata{Name: "plant"},
		Mode:     result.ModeAll,
		Configs: []checkout.Configuration{
			&checkout.PointCheck{
				Metadata: checkout.Metadata{Name: "flow"},
				ByPoint:  map[string]comparison.List{"FLOW:PV": {eq}},
			},
			&checkout.DeviceCheck{
				Metadata: checkout.Metadata{Name: "ghost"},
				Devices:  []string{"nowhere"},
				ByAttr:   map[string]comparison.List{"state": {eq}},
			},
		},
	}}

	factory := signal.Factory(func(point string) signal.Signal {
		return &staticSignal{name: point, value: 5}
	})
	pf := checkout.Prepare(testLogger(), file, device.NewRegistry(), cache.New(factory))
	pf.Run(context.Background())
	return pf
}

func TestBuild(t *testing.T) {
	rep := Build("plant-7", ranFile(t), 1500*time.Millisecond)

	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "plant-7", rep.Plant)
	assert.InDelta(t, 1.5, rep.Elapsed, 1e-9)
	assert.Equal(t, result.Error, rep.Result.Severity)
	require.Len(t, rep.Records, 2)

	byPath := map[string]Record{}
	for _, rec := range rep.Records {
		byPath[rec.Path] = rec
	}

	failed, ok := byPath["plant/ghost"]
	require.True(t, ok)
	assert.Equal(t, result.Error, failed.Result.Severity)
	assert.Empty(t, failed.Comparison)

	passed, ok := byPath["plant/flow/FLOW:PV"]
	require.True(t, ok)
	assert.Equal(t, result.Success, passed.Result.Severity)
	assert.Equal(t, "FLOW:PV", passed.Identifier)
	assert.Equal(t, 5, passed.Data)
	assert.NotEmpty(t, passed.Comparison)
}

func TestReportJSONRoundTrip(t *testing.T) {
	rep := Build("plant-7", ranFile(t), time.Second)

	data, err := rep.ToJSON()
	require.NoError(t, err)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, back.ID)
	assert.Equal(t, rep.Result, back.Result)
	assert.Len(t, back.Records, len(rep.Records))
}

func TestHistory(t *testing.T) {
	h, err := NewHistory(testLogger(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer h.Close()

	ctx := context.Background()

	_, err = h.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoReports)

	first := Build("plant-7", ranFile(t), time.Second)
	require.NoError(t, h.Save(ctx, first))

	second := Build("plant-7", ranFile(t), time.Second)
	second.Timestamp = second.Timestamp.Add(time.Minute)
	require.NoError(t, h.Save(ctx, second))

	latest, err := h.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	pending, err := h.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)

	count, err := h.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	require.NoError(t, h.MarkPublished(ctx, []string{first.ID}))

	pending, err = h.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	require.NoError(t, h.Cleanup(ctx, time.Hour))
	count, err = h.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
