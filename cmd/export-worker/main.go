package main

import (
	"context"
	"errors"
	"os"

	"budgetflow/internal/backend"
	"budgetflow/internal/cli"
	"budgetflow/internal/log"
	"budgetflow/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", log.FieldError, envErr)
	}
	logger.Info("Starting export-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateExport(); err != nil {
		logger.Error("Export configuration invalid", log.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()
	app, err := cli.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}
	defer app.Close()
	if app.Backend.AMQP == nil {
		logger.Error("AMQP broker unreachable", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	exporter, err := app.Factory.CreateExporter(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	exportWorker := worker.NewExportWorker(app.Backend.Records, exporter, logger)

	runCtx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	// Catch up on months written while the worker was down.
	if err := exportWorker.ExportAll(runCtx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	}

	go func() {
		err := app.Backend.AMQP.ConsumeMonthUpdated(runCtx, exportWorker.HandleMonthUpdated)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker shutdown complete")
}
