// Package signal defines the live data-source handle consumed by the data
// cache and the transport-level error classification for reads.
package signal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Signal is a live handle to one control point's current value.
//
// A nil value with a nil error is the explicit "no data" sentinel: the point
// is reachable but reports nothing usable.
type Signal interface {
	Name() string
	Read(ctx context.Context) (any, error)
}

// Sampler is implemented by signals able to observe multiple samples over a
// time window, for use with reduced reads.
type Sampler interface {
	Sample(ctx context.Context, period time.Duration) ([]float64, error)
}

// Factory creates the live signal handle for a raw point name.
type Factory func(point string) Signal

// ErrDisconnected marks reads that failed because the underlying point could
// not be reached or timed out, as opposed to an unexpected fault.
var ErrDisconnected = errors.New("signal disconnected")

// Disconnectedf wraps a transport failure as a disconnect-class error.
func Disconnectedf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrDisconnected)
}

// IsDisconnected reports whether the error is timeout/connection-class.
func IsDisconnected(err error) bool {
	return errors.Is(err, ErrDisconnected) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded)
}
