package main

import (
	"context"
	"errors"
	"os"
	"time"

	"qarzhy/internal/amqp"
	"qarzhy/internal/backend"
	"qarzhy/internal/cli"
	"qarzhy/internal/config"
	"qarzhy/internal/log"
	"qarzhy/internal/sheets"
	gsheet "qarzhy/internal/sheets/google"
	mem "qarzhy/internal/sheets/memory"
	"qarzhy/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(log.ComponentWorker)
	logger.Info("Starting qarzhy-worker")

	// The worker only reads the store; events are consumed, never published.
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	exporter, err := newExporter(cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	exportWorker := worker.NewExportWorker(res.Store, exporter)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	logger.Info("Performing startup export")
	if err := exportWorker.FullSync(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
		// continue: events and the periodic export catch up
	}

	if cfg.AMQPEnabled() {
		go consume(ctx, cfg, logger, exportWorker)
	} else {
		logger.Info("AMQP disabled - relying on periodic export only")
	}

	if cfg.ExportSyncInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.ExportSyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := exportWorker.FullSync(ctx); err != nil {
						logger.Error("Periodic export failed", log.FieldError, err)
					}
				}
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

func newExporter(cfg *config.Config, logger *log.Logger) (sheets.LedgerExporter, error) {
	if !cfg.ExportEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory (dry run)")
		return mem.New(), nil
	}
	client, err := gsheet.NewClient(context.Background(), gsheet.Options{
		SpreadsheetID:     cfg.GoogleSpreadsheetID,
		TransactionsSheet: cfg.GoogleTransactionsSheet,
		DebtsSheet:        cfg.GoogleDebtsSheet,
		CredentialsJSON:   cfg.GoogleServiceAccountJSON,
		CredentialsFile:   cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

func consume(ctx context.Context, cfg *config.Config, logger *log.Logger, w *worker.ExportWorker) {
	client, err := amqp.ConnectWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Failed to connect to AMQP, relying on periodic export", log.FieldError, err)
		}
		return
	}
	defer client.Close()

	logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	if err := client.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}
}
