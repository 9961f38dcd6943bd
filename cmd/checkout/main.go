package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/speedwagon-io/checkout/internal/checkout"
	"github.com/speedwagon-io/checkout/internal/config"
	"github.com/speedwagon-io/checkout/internal/device"
	"github.com/speedwagon-io/checkout/internal/health"
	"github.com/speedwagon-io/checkout/internal/lib/logger/sl"
	"github.com/speedwagon-io/checkout/internal/monitor"
	"github.com/speedwagon-io/checkout/internal/report"
	"github.com/speedwagon-io/checkout/internal/result"
	"github.com/speedwagon-io/checkout/internal/sender"
	gw "github.com/speedwagon-io/checkout/internal/signal/gateway"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	once := flag.Bool("once", false, "run a single checkout and exit with its severity")
	dryRun := flag.Bool("dry-run", false, "log reports instead of publishing")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting checkout",
		slog.String("env", cfg.Env),
		slog.String("plant", cfg.Plant.Name),
		slog.Bool("once", *once),
		slog.Bool("dry_run", *dryRun),
	)

	file, err := checkout.Load(cfg.Plant.CheckoutPath)
	if err != nil {
		log.Error("failed to load checkout file", sl.Err(err))
		os.Exit(1)
	}

	var db device.Database = device.NewRegistry()
	if cfg.Plant.DevicesPath != "" {
		registry, err := device.LoadRegistry(cfg.Plant.DevicesPath)
		if err != nil {
			log.Error("failed to load device registry", sl.Err(err))
			os.Exit(1)
		}
		db = registry
	}

	gateway := gw.New(log, cfg.Gateway.URL, cfg.Gateway.Timeout)
	defer gateway.Close()

	var publisher sender.Sender
	switch {
	case *dryRun:
		publisher = sender.NewLogSender(log)
		log.Info("dry-run mode: reports will be logged instead of published")
	case cfg.Publisher.Enabled:
		publisher = sender.NewHTTPSender(log, sender.Options{
			URL:          cfg.Publisher.URL,
			Token:        cfg.Publisher.Token,
			Timeout:      cfg.Publisher.Timeout,
			MaxAttempts:  cfg.Publisher.Retry.MaxAttempts,
			InitialDelay: cfg.Publisher.Retry.InitialDelay,
			MaxDelay:     cfg.Publisher.Retry.MaxDelay,
		})
	}

	var history *report.History
	if cfg.History.Enabled && !*dryRun {
		history, err = report.NewHistory(log, cfg.History.Path)
		if err != nil {
			log.Error("failed to open report history", sl.Err(err))
			os.Exit(1)
		}
		defer history.Close()
		log.Info("history enabled", slog.String("path", cfg.History.Path))
	}

	var runnerHistory monitor.History
	if history != nil {
		runnerHistory = history
	}
	runner := monitor.NewRunner(log, cfg, file, db, gateway.Factory(), publisher, runnerHistory)

	if *once {
		runOnce(log, runner, publisher, history)
		return
	}

	healthServer := health.NewServer(log, cfg.Health.Address)
	if publisher != nil {
		healthServer.AddChecker(health.NewPublisherHealthChecker(publisher.Health))
	}
	if history != nil {
		healthServer.AddChecker(health.NewHistoryHealthChecker(history.Count))
		healthServer.SetLatestReport(history.Latest)
	}
	if err := healthServer.Start(); err != nil {
		log.Error("failed to start health server", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	runner.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	runner.Stop()

	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop health server", sl.Err(err))
	}

	log.Info("checkout stopped")
}

func runOnce(log *slog.Logger, runner *monitor.Runner, publisher sender.Sender, history *report.History) {
	ctx := context.Background()
	rep := runner.RunOnce(ctx)

	if history != nil {
		if err := history.Save(ctx, rep); err != nil {
			log.Error("failed to store report", sl.Err(err))
		}
	}
	if publisher != nil {
		if err := publisher.Send(ctx, rep); err != nil {
			log.Error("failed to publish report", sl.Err(err))
		} else if history != nil {
			if err := history.MarkPublished(ctx, []string{rep.ID}); err != nil {
				log.Error("failed to mark report as published", sl.Err(err))
			}
		}
	}

	switch rep.Result.Severity {
	case result.Success, result.Warning:
		os.Exit(0)
	case result.Error:
		os.Exit(1)
	default:
		os.Exit(2)
	}
}
