// Package cache is the single point of truth for "fetch the current value of
// X" during one checkout session. Concurrent requests for the same source
// and window settings collapse into one underlying fetch, and every fetched
// value is held for the rest of the session.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/speedwagon-io/checkout/internal/reduce"
	"github.com/speedwagon-io/checkout/internal/signal"
	"github.com/speedwagon-io/checkout/internal/tools"
)

// DataCache deduplicates and memoizes data acquisition for one
// preparation-and-execution session. It is the only shared mutable state
// touched by concurrently running leaves.
type DataCache struct {
	group   singleflight.Group
	signals *SignalCache

	mu     sync.Mutex
	values map[string]entry
}

type entry struct {
	value any
	err   error
}

// New builds a session cache. The factory creates live signal handles for
// raw point names on first use.
func New(factory signal.Factory) *DataCache {
	return &DataCache{
		signals: newSignalCache(factory),
		values:  make(map[string]entry),
	}
}

// Signals exposes the point-name-to-handle cache.
func (c *DataCache) Signals() *SignalCache {
	return c.signals
}

// Clear drops all memoized data. Signal handles are kept.
func (c *DataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]entry)
}

// GetSignalData reads the signal's current value, optionally reducing a
// sampled window, and optionally coercing the result to a string.
//
// Concurrent calls with the same signal and window parameters trigger at
// most one underlying fetch; all callers observe the same value or the same
// error. Disconnect-class errors pass through unchanged for the caller to
// classify.
func (c *DataCache) GetSignalData(
	ctx context.Context,
	sig signal.Signal,
	period time.Duration,
	method reduce.Method,
	asString bool,
) (any, error) {
	key := fmt.Sprintf("signal\x00%s\x00%s\x00%s\x00%t", sig.Name(), period, method, asString)
	return c.fetch(key, func() (any, error) {
		return readSignal(ctx, sig, period, method, asString)
	})
}

// GetToolData runs the tool, deduplicated by the tool's settings key.
func (c *DataCache) GetToolData(ctx context.Context, tool tools.Tool) (any, error) {
	key := "tool\x00" + tool.CacheKey()
	return c.fetch(key, func() (any, error) {
		return tool.Run(ctx)
	})
}

// fetch memoizes one acquisition per key, deduplicating in-flight requests.
func (c *DataCache) fetch(key string, acquire func() (any, error)) (any, error) {
	c.mu.Lock()
	if e, ok := c.values[key]; ok {
		c.mu.Unlock()
		return e.value, e.err
	}
	c.mu.Unlock()

	value, err, _ := c.group.Do(key, func() (any, error) {
		value, err := acquire()
		c.mu.Lock()
		c.values[key] = entry{value: value, err: err}
		c.mu.Unlock()
		return value, err
	})
	return value, err
}

func readSignal(
	ctx context.Context,
	sig signal.Signal,
	period time.Duration,
	method reduce.Method,
	asString bool,
) (any, error) {
	var value any
	if period > 0 {
		sampler, ok := sig.(signal.Sampler)
		if !ok {
			return nil, fmt.Errorf("signal %s does not support windowed sampling", sig.Name())
		}
		if method == "" {
			method = reduce.Average
		}
		samples, err := sampler.Sample(ctx, period)
		if err != nil {
			return nil, err
		}
		reduced, err := method.Reduce(samples)
		if err != nil {
			return nil, err
		}
		value = reduced
	} else {
		read, err := sig.Read(ctx)
		if err != nil {
			return nil, err
		}
		value = read
	}

	if asString && value != nil {
		value = fmt.Sprint(value)
	}
	return value, nil
}

// SignalCache creates and holds one live handle per raw point name.
type SignalCache struct {
	factory signal.Factory

	mu      sync.Mutex
	byPoint map[string]signal.Signal
}

func newSignalCache(factory signal.Factory) *SignalCache {
	return &SignalCache{
		factory: factory,
		byPoint: make(map[string]signal.Signal),
	}
}

// Get returns the handle for a point name, creating it on first use.
func (s *SignalCache) Get(point string) signal.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sig, ok := s.byPoint[point]; ok {
		return sig
	}
	sig := s.factory(point)
	s.byPoint[point] = sig
	return sig
}

// Len reports how many signal handles have been created.
func (s *SignalCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPoint)
}
