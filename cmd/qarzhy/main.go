package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"qarzhy/internal/backend"
	"qarzhy/internal/cli"
	apphttp "qarzhy/internal/http"
	"qarzhy/internal/log"
	"qarzhy/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg, os.Stdout)

	chart, err := cli.LoadChart(logger, cfg)
	if err != nil {
		cli.Fatal(logger, "Failed to load chart of accounts", err)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}

	ledger := services.NewLedgerService(res.Store, res.Publisher, chart)
	srv := apphttp.NewServer(":"+cfg.Port, ledger, apphttp.Options{
		WriteRateLimit: cfg.WriteRateLimit,
		Logger:         logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting qarzhy server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
