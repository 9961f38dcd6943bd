// Package sender publishes run reports to the central results service.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/speedwagon-io/checkout/internal/lib/logger/sl"
	"github.com/speedwagon-io/checkout/internal/report"
)

type Sender interface {
	Send(ctx context.Context, rep *report.Report) error
	SendBatch(ctx context.Context, reports []*report.Report) error
	Health(ctx context.Context) error
}

// Options configures the HTTP sender.
type Options struct {
	URL          string
	Token        string
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

type HTTPSender struct {
	log         *slog.Logger
	url         string
	token       string
	client      *http.Client
	maxAttempts int
	backoff     *ExponentialBackoff
}

func NewHTTPSender(log *slog.Logger, opts Options) *HTTPSender {
	return &HTTPSender{
		log:   log,
		url:   opts.URL,
		token: opts.Token,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		maxAttempts: opts.MaxAttempts,
		backoff:     NewExponentialBackoff(opts.InitialDelay, opts.MaxDelay),
	}
}

func (s *HTTPSender) Send(ctx context.Context, rep *report.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return s.sendWithRetry(ctx, data)
}

func (s *HTTPSender) SendBatch(ctx context.Context, reports []*report.Report) error {
	data, err := json.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}

	return s.sendWithRetry(ctx, data)
}

func (s *HTTPSender) sendWithRetry(ctx context.Context, data []byte) error {
	var lastErr error

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.doSend(ctx, data)
		if err == nil {
			return nil
		}

		lastErr = err
		s.log.Warn("send attempt failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", s.maxAttempts),
			sl.Err(err),
		)

		if attempt < s.maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff.NextDelay(attempt)):
			}
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", s.maxAttempts, lastErr)
}

func (s *HTTPSender) doSend(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

func (s *HTTPSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// LogSender logs reports instead of sending them (for dry runs)
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, rep *report.Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	s.log.Info("SEND",
		slog.String("report_id", rep.ID),
		slog.String("plant", rep.Plant),
		slog.String("severity", rep.Result.Severity.String()),
		slog.Int("records", len(rep.Records)),
		slog.String("payload", string(data)),
	)

	return nil
}

func (s *LogSender) SendBatch(ctx context.Context, reports []*report.Report) error {
	for _, rep := range reports {
		if err := s.Send(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}

func (s *LogSender) Health(ctx context.Context) error {
	return nil
}
