// Package gateway consumes control points through the plant's HTTP gateway,
// exposing them as signal handles.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/speedwagon-io/checkout/internal/signal"
)

// Client talks to one gateway instance. Signals created from it share the
// underlying HTTP client.
type Client struct {
	log     *slog.Logger
	baseURL string
	client  *http.Client
}

func New(log *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Factory adapts the client for cache injection: each point name maps to a
// signal reading through this gateway.
func (c *Client) Factory() signal.Factory {
	return func(point string) signal.Signal {
		return &pointSignal{client: c, point: point}
	}
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type readResponse struct {
	Point   string `json:"point"`
	Value   any    `json:"value"`
	Quality string `json:"quality"`
}

type sampleResponse struct {
	Point   string `json:"point"`
	Samples []any  `json:"samples"`
}

const (
	qualityGood         = "good"
	qualityBad          = "bad"
	qualityDisconnected = "disconnected"
)

func (c *Client) read(ctx context.Context, point string) (any, error) {
	body, err := c.post(ctx, "/read", map[string]any{"point": point})
	if err != nil {
		return nil, err
	}

	// Legacy endpoints answer a bare boolean instead of JSON when the
	// point is a simple status flag.
	if b, ok := parseBareBool(body); ok {
		return b, nil
	}

	var resp readResponse
	if err := json.Unmarshal(fixPythonBooleans(body), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal read response: %w", err)
	}

	switch resp.Quality {
	case qualityDisconnected:
		return nil, signal.Disconnectedf("gateway reports %s disconnected", point)
	case qualityBad:
		c.log.Debug("gateway returned no usable data", slog.String("point", point))
		return nil, nil
	case qualityGood, "":
		return resp.Value, nil
	}
	return nil, fmt.Errorf("unknown quality %q for point %s", resp.Quality, point)
}

func (c *Client) sample(ctx context.Context, point string, period time.Duration) ([]float64, error) {
	body, err := c.post(ctx, "/sample", map[string]any{
		"point":   point,
		"seconds": period.Seconds(),
	})
	if err != nil {
		return nil, err
	}

	var resp sampleResponse
	if err := json.Unmarshal(fixPythonBooleans(body), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sample response: %w", err)
	}

	samples := make([]float64, 0, len(resp.Samples))
	for _, raw := range resp.Samples {
		v, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("sample for %s: %w", point, err)
		}
		samples = append(samples, v)
	}
	return samples, nil
}

func (c *Client) post(ctx context.Context, path string, payload map[string]any) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport failures and client timeouts are disconnects, not
		// internal faults.
		return nil, signal.Disconnectedf("gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, signal.Disconnectedf("gateway returned status %d", resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

func parseBareBool(body []byte) (bool, bool) {
	switch string(bytes.TrimSpace(body)) {
	case "True", "true":
		return true, true
	case "False", "false":
		return false, true
	}
	return false, false
}

// fixPythonBooleans repairs True/False leaking out of the gateway's upstream
// scripts before JSON decoding.
func fixPythonBooleans(body []byte) []byte {
	s := string(body)
	s = strings.ReplaceAll(s, ":True,", ":true,")
	s = strings.ReplaceAll(s, ":True}", ":true}")
	s = strings.ReplaceAll(s, ":False,", ":false,")
	s = strings.ReplaceAll(s, ":False}", ":false}")
	return []byte(s)
}

func toFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse float from %q: %w", val, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
}

// pointSignal is one control point read through the gateway.
type pointSignal struct {
	client *Client
	point  string
}

func (s *pointSignal) Name() string {
	return s.point
}

func (s *pointSignal) Read(ctx context.Context) (any, error) {
	return s.client.read(ctx, s.point)
}

func (s *pointSignal) Sample(ctx context.Context, period time.Duration) ([]float64, error) {
	return s.client.sample(ctx, s.point, period)
}
