package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedwagon-io/checkout/internal/signal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(testLogger(), srv.URL, 2*time.Second)
}

func TestReadGoodValue(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/read", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "FLOW:PV", req["point"])

		json.NewEncoder(w).Encode(map[string]any{
			"point":   "FLOW:PV",
			"value":   5.1,
			"quality": "good",
		})
	})

	sig := client.Factory()("FLOW:PV")
	assert.Equal(t, "FLOW:PV", sig.Name())

	value, err := sig.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.1, value)
}

func TestReadBadQualityIsNoData(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"quality": "bad"})
	})

	value, err := client.Factory()("X").Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestReadDisconnectedQuality(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"quality": "disconnected"})
	})

	_, err := client.Factory()("X").Read(context.Background())
	require.Error(t, err)
	assert.True(t, signal.IsDisconnected(err))
}

func TestReadBareBoolean(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "True")
	})

	value, err := client.Factory()("X").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestReadPythonBooleansRepaired(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"point":"X","value":True,"quality":"good"}`)
	})

	value, err := client.Factory()("X").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestServerErrorIsDisconnect(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Factory()("X").Read(context.Background())
	require.Error(t, err)
	assert.True(t, signal.IsDisconnected(err))
}

func TestClientErrorIsNotDisconnect(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Factory()("X").Read(context.Background())
	require.Error(t, err)
	assert.False(t, signal.IsDisconnected(err))
}

func TestUnreachableGatewayIsDisconnect(t *testing.T) {
	client := New(testLogger(), "http://127.0.0.1:1", 500*time.Millisecond)

	_, err := client.Factory()("X").Read(context.Background())
	require.Error(t, err)
	assert.True(t, signal.IsDisconnected(err))
}

func TestSample(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sample", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "FLOW:PV", req["point"])
		assert.InDelta(t, 1.5, req["seconds"], 1e-9)

		json.NewEncoder(w).Encode(map[string]any{
			"point":   "FLOW:PV",
			"samples": []any{1.0, "2.5", 3},
		})
	})

	sampler, ok := client.Factory()("FLOW:PV").(signal.Sampler)
	require.True(t, ok)

	samples, err := sampler.Sample(context.Background(), 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, samples)
}
