package sender

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/checkout/internal/report"
	"github.com/speedwagon-io/checkout/internal/result"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testReport() *report.Report {
	return &report.Report{
		ID:     "r-1",
		Plant:  "plant-7",
		Result: result.Result{Severity: result.Success},
	}
}

func newSender(url string, attempts int) *HTTPSender {
	return NewHTTPSender(testLogger(), Options{
		URL:          url,
		Token:        "sekret",
		Timeout:      time.Second,
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	})
}

func TestSendSetsHeaders(t *testing.T) {
	var authorization, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	err := newSender(srv.URL, 1).Send(context.Background(), testReport())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sekret", authorization)
	assert.Equal(t, "application/json", contentType)
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	err := newSender(srv.URL, 5).Send(context.Background(), testReport())
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newSender(srv.URL, 3).Send(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.EqualValues(t, 3, calls.Load())
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, newSender(srv.URL, 1).Health(context.Background()))

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.Error(t, newSender(down.URL, 1).Health(context.Background()))
}

func TestBackoffBounded(t *testing.T) {
	b := NewExponentialBackoff(10*time.Millisecond, 80*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, b.NextDelay(0))
	for attempt := 1; attempt < 10; attempt++ {
		d := b.NextDelay(attempt)
		assert.LessOrEqual(t, d, 80*time.Millisecond)
		assert.Positive(t, d)
	}
}
