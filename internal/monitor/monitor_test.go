package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/checkout/internal/checkout"
	"github.com/speedwagon-io/checkout/internal/comparison"
	"github.com/speedwagon-io/checkout/internal/config"
	"github.com/speedwagon-io/checkout/internal/device"
	"github.com/speedwagon-io/checkout/internal/report"
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

type captureSender struct {
	mu   sync.Mutex
	sent []*report.Report
	err  error
}

func (c *captureSender) Send(ctx context.Context, rep *report.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, rep)
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *captureSender) SendBatch(ctx context.Context, reports []*report.Report) error {
	for _, rep := range reports {
		if err := c.Send(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}

func (c *captureSender) Health(ctx context.Context) error { return nil }

type memoryHistory struct {
	saved     []*report.Report
	published map[string]bool
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{published: map[string]bool{}}
}

func (m *memoryHistory) Save(ctx context.Context, rep *report.Report) error {
	m.saved = append(m.saved, rep)
	return nil
}

func (m *memoryHistory) GetUnpublished(ctx context.Context, limit int) ([]*report.Report, error) {
	var out []*report.Report
	for _, rep := range m.saved {
		if !m.published[rep.ID] {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (m *memoryHistory) MarkPublished(ctx context.Context, ids []string) error {
	for _, id := range ids {
		m.published[id] = true
	}
	return nil
}

func (m *memoryHistory) Cleanup(ctx context.Context, maxAge time.Duration) error {
	return nil
}

func testRunner(snd *captureSender, history History) *Runner {
	eq := &comparison.Equals{Options: comparison.DefaultOptions(), Value: 5}
	file := &checkout.File{Root: checkout.Group{
		Metadata: checkout.Metadata{Name: "plant"},
		Mode:     result.ModeAll,
		Configs: []checkout.Configuration{
			&checkout.PointCheck{
				Metadata: checkout.Metadata{Name: "flow"},
				ByPoint:  map[string]comparison.List{"FLOW:PV": {eq}},
			},
		},
	}}
	factory := signal.Factory(func(point string) signal.Signal {
		return &staticSignal{name: point, value: 5}
	})
	cfg := &config.Config{
		Plant: config.PlantRef{Name: "plant-7"},
		Run: config.RunConfig{
			Interval: time.Minute,
			Timeout:  10 * time.Second,
		},
		History: config.HistoryConfig{MaxAge: time.Hour},
	}
	return NewRunner(testLogger(), cfg, file, device.NewRegistry(), factory, snd, history)
}

func TestRunOnce(t *testing.T) {
	runner := testRunner(nil, nil)

	rep := runner.RunOnce(context.Background())

	assert.Equal(t, "plant-7", rep.Plant)
	assert.Equal(t, result.Success, rep.Result.Severity)
	require.Len(t, rep.Records, 1)
	assert.Equal(t, "plant/flow/FLOW:PV", rep.Records[0].Path)
}

func TestRunOnceSequentialMatches(t *testing.T) {
	runner := testRunner(nil, nil)
	runner.cfg.Run.Sequential = true

	rep := runner.RunOnce(context.Background())
	assert.Equal(t, result.Success, rep.Result.Severity)
}

func TestRunAndPublishMarksPublished(t *testing.T) {
	snd := &captureSender{}
	history := newMemoryHistory()
	runner := testRunner(snd, history)

	runner.runAndPublish(context.Background())

	require.Len(t, snd.sent, 1)
	require.Len(t, history.saved, 1)
	assert.True(t, history.published[history.saved[0].ID])
}

func TestPublishFailureKeepsReportUnpublished(t *testing.T) {
	snd := &captureSender{err: errors.New("results service down")}
	history := newMemoryHistory()
	runner := testRunner(snd, history)

	runner.runAndPublish(context.Background())

	require.Len(t, history.saved, 1)
	assert.False(t, history.published[history.saved[0].ID])

	// Service recovers; the retry pass drains the backlog.
	snd.err = nil
	runner.processUnpublished(context.Background())

	require.Len(t, snd.sent, 1)
	assert.True(t, history.published[history.saved[0].ID])

	pending, err := history.GetUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStartStop(t *testing.T) {
	snd := &captureSender{}
	history := newMemoryHistory()
	runner := testRunner(snd, history)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	// The initial run happens before the first tick.
	require.Eventually(t, func() bool {
		return snd.count() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	runner.Stop()
}
