package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"budgetflow/internal/cli"
	apphttp "budgetflow/internal/http"
	"budgetflow/internal/log"
	"budgetflow/internal/notify"
	"budgetflow/internal/services"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", log.FieldError, envErr)
	}

	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	notices := notify.NewBuffer(notify.DefaultBufferSize)
	months := apphttp.NewMonthCache()
	opts := append(app.SessionOptions(),
		services.WithSink(notify.Multi{notices, notify.NewLogSink(logger)}),
		services.WithOnChange(months.Invalidate),
	)
	session := services.NewSession(app.Vocab, app.Backend.Records, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Session:   session,
		Notices:   notices,
		Months:    months,
		Logger:    logger,
		Locale:    cfg.Locale,
		RateLimit: cfg.RateLimit,
	})
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		session.Close()
		if err := app.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting budgetflow server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"forecast", cfg.ForecastURL != "",
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
