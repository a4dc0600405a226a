package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/auth"
	"finanzas/internal/backend"
	"finanzas/internal/cli"
	"finanzas/internal/config"
	"finanzas/internal/events"
	"finanzas/internal/events/kafka"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
	gsheet "finanzas/internal/sheets/google"
	"finanzas/internal/worker"
)

const (
	sweepConcurrency = 4
	jobTimeout       = 10 * time.Minute
	purgeSchedule    = "@every 1h"
)

// eventSource is satisfied by the AMQP client and the Kafka consumer.
type eventSource interface {
	ConsumeEvents(ctx context.Context, handler func(context.Context, events.LedgerEvent) error) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting finanzas-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.RequireEvents = true
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()
	repo := res.Repository

	var mirror sheets.LedgerMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		if err := client.EnsureHeader(context.Background()); err != nil {
			logger.Error("Failed to prepare ledger sheet", log.FieldError, err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	source, closeSource, err := newEventSource(cfg, res)
	if err != nil {
		logger.Error("No event source", log.FieldError, err)
		os.Exit(1)
	}
	defer closeSource()

	reconciler := services.NewReconciler(repo, sweepConcurrency)
	authSvc := auth.NewService(repo, cfg.SessionTTL)
	ledgerWorker := worker.NewLedgerWorker(repo, mirror, reconciler, logger)

	scheduler := worker.NewScheduler(logger, jobTimeout)
	sweep := func(ctx context.Context) error {
		reports, err := reconciler.Sweep(ctx)
		if err != nil {
			return err
		}
		logger.Info("Reconciliation sweep finished", "tenants", len(reports))
		return nil
	}
	purge := func(ctx context.Context) error {
		n, err := authSvc.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("Purged expired sessions", "count", n)
		}
		return nil
	}
	if err := scheduler.Add(cfg.ReconcileSchedule, "reconcile", sweep); err != nil {
		logger.Error("Failed to schedule reconciliation", log.FieldError, err)
		os.Exit(1)
	}
	if err := scheduler.Add(purgeSchedule, "purge-sessions", purge); err != nil {
		logger.Error("Failed to schedule session purge", log.FieldError, err)
		os.Exit(1)
	}

	// catch drift that happened while the worker was down
	scheduler.RunNow("reconcile", sweep)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		err := source.ConsumeEvents(gctx, ledgerWorker.HandleEvent)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

func newEventSource(cfg *config.Config, res *backend.BackendResult) (eventSource, func(), error) {
	switch cfg.EventsBackend {
	case config.EventsAMQP:
		// the backend owns the client and closes it in Cleanup
		return res.AMQP, func() {}, nil
	case config.EventsKafka:
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		return consumer, func() { _ = consumer.Close() }, nil
	default:
		return nil, nil, errors.New("EVENTS_BACKEND must be amqp or kafka for the worker")
	}
}
