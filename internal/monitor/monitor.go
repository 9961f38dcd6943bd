// Package monitor runs the checkout file on a schedule, records each run in
// history and publishes reports to the results service.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/speedwagon-io/checkout/internal/cache"
	"github.com/speedwagon-io/checkout/internal/checkout"
	"github.com/speedwagon-io/checkout/internal/config"
	"github.com/speedwagon-io/checkout/internal/device"
	"github.com/speedwagon-io/checkout/internal/lib/logger/sl"
	"github.com/speedwagon-io/checkout/internal/report"
	"github.com/speedwagon-io/checkout/internal/result"
	"github.com/speedwagon-io/checkout/internal/sender"
	"github.com/speedwagon-io/checkout/internal/signal"
)

// History is the slice of report.History the runner needs.
type History interface {
	Save(ctx context.Context, rep *report.Report) error
	GetUnpublished(ctx context.Context, limit int) ([]*report.Report, error)
	MarkPublished(ctx context.Context, ids []string) error
	Cleanup(ctx context.Context, maxAge time.Duration) error
}

type Runner struct {
	log     *slog.Logger
	cfg     *config.Config
	file    *checkout.File
	db      device.Database
	factory signal.Factory
	sender  sender.Sender
	history History
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewRunner(
	log *slog.Logger,
	cfg *config.Config,
	file *checkout.File,
	db device.Database,
	factory signal.Factory,
	snd sender.Sender,
	history History,
) *Runner {
	return &Runner{
		log:     log,
		cfg:     cfg,
		file:    file,
		db:      db,
		factory: factory,
		sender:  snd,
		history: history,
		stopCh:  make(chan struct{}),
	}
}

// RunOnce prepares the file against a fresh cache, executes it and returns
// the built report. Each call re-reads live data.
func (r *Runner) RunOnce(ctx context.Context) *report.Report {
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Run.Timeout)
	defer cancel()

	start := time.Now()
	pf := checkout.Prepare(r.log, r.file, r.db, cache.New(r.factory))

	var res result.Result
	if r.cfg.Run.Sequential {
		res = pf.RunSequential(runCtx)
	} else {
		res = pf.Run(runCtx)
	}

	rep := report.Build(r.cfg.Plant.Name, pf, time.Since(start))

	r.log.Info("checkout run finished",
		slog.String("severity", res.Severity.String()),
		slog.Int("records", len(rep.Records)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return rep
}

// Start runs immediately, then on every interval tick until the context is
// cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("starting checkout monitor",
		slog.String("plant", r.cfg.Plant.Name),
		slog.Duration("interval", r.cfg.Run.Interval),
		slog.Bool("sequential", r.cfg.Run.Sequential),
	)

	ticker := time.NewTicker(r.cfg.Run.Interval)
	defer ticker.Stop()

	r.wg.Add(1)
	go r.retryUnpublished(ctx)

	r.runAndPublish(ctx)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("context cancelled, stopping monitor")
			return
		case <-r.stopCh:
			r.log.Info("stop signal received, stopping monitor")
			return
		case <-ticker.C:
			r.runAndPublish(ctx)
		}
	}
}

func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Runner) runAndPublish(ctx context.Context) {
	rep := r.RunOnce(ctx)

	if r.history != nil {
		if err := r.history.Save(ctx, rep); err != nil {
			r.log.Error("failed to store report", sl.Err(err))
		}
	}

	if r.sender == nil {
		return
	}

	if err := r.sender.Send(ctx, rep); err != nil {
		r.log.Error("failed to publish report",
			slog.String("report_id", rep.ID),
			sl.Err(err),
		)
		// History keeps the report; the retry loop picks it up later.
		return
	}

	if r.history != nil {
		if err := r.history.MarkPublished(ctx, []string{rep.ID}); err != nil {
			r.log.Error("failed to mark report as published", sl.Err(err))
		}
	}
	r.log.Debug("report published", slog.String("report_id", rep.ID))
}

func (r *Runner) retryUnpublished(ctx context.Context) {
	defer r.wg.Done()

	if r.history == nil || r.sender == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.processUnpublished(ctx)
		}
	}
}

func (r *Runner) processUnpublished(ctx context.Context) {
	pending, err := r.history.GetUnpublished(ctx, 100)
	if err != nil {
		r.log.Error("failed to get unpublished reports", sl.Err(err))
		return
	}

	if len(pending) == 0 {
		return
	}

	r.log.Info("republishing stored reports", slog.Int("count", len(pending)))

	var sentIDs []string
	for _, rep := range pending {
		if err := r.sender.Send(ctx, rep); err != nil {
			r.log.Debug("failed to republish report",
				slog.String("report_id", rep.ID),
				sl.Err(err),
			)
			break
		}
		sentIDs = append(sentIDs, rep.ID)
	}

	if len(sentIDs) > 0 {
		if err := r.history.MarkPublished(ctx, sentIDs); err != nil {
			r.log.Error("failed to mark reports as published", sl.Err(err))
		} else {
			r.log.Info("stored reports published", slog.Int("count", len(sentIDs)))
		}
	}

	if err := r.history.Cleanup(ctx, r.cfg.History.MaxAge); err != nil {
		r.log.Error("failed to cleanup old reports", sl.Err(err))
	}
}
