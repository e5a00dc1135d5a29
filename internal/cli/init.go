// Package cli provides the process bootstrap shared by cmd/budgetflow,
// cmd/export-worker and cmd/budgetctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetflow/internal/backend"
	"budgetflow/internal/config"
	"budgetflow/internal/core"
	"budgetflow/internal/forecast"
	"budgetflow/internal/log"
	"budgetflow/internal/services"
)

// LoadEnvFile loads .env (or the given files) for local development.
// Variables already set in the environment win. A missing file is not an
// error.
func LoadEnvFile(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SetupLogger builds the process logger at the given LOG_LEVEL and makes
// it the slog default.
func SetupLogger(level string) *log.Logger {
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:   lvl,
		Handler: slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadConfig reads and validates the environment configuration.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAndValidateConfig is LoadConfig that exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// App is what every binary needs after bootstrap: config, logger,
// vocabulary and an opened backend. Close releases the backend.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Vocab   *core.Vocabulary
	Backend *backend.BackendResult
	Factory backend.Factory
}

// Open loads the category vocabulary and opens the configured backend.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	vocab, err := config.LoadVocabulary(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := backend.NewFactory(logger)
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	logger.Info("Backend ready",
		"backend", backendCfg.Type.String(),
		"categories", len(vocab.Names()),
		"amqp", res.AMQP != nil)
	return &App{Config: cfg, Logger: logger, Vocab: vocab, Backend: res, Factory: factory}, nil
}

func (a *App) Close() error {
	if a.Backend == nil || a.Backend.Cleanup == nil {
		return nil
	}
	return a.Backend.Cleanup()
}

// SessionOptions translates the configuration into session options. The
// publisher and forecaster are only set when configured.
func (a *App) SessionOptions() []services.Option {
	cfg := a.Config
	opts := []services.Option{
		services.WithLogger(a.Logger),
		services.WithConfig(services.Config{
			TrailingMonths: cfg.TrailingMonths,
			HistoryLimit:   cfg.HistoryLimit,
			RoundingUnit:   cfg.RoundingUnit,
			AutoFit:        cfg.AutoFit,
			Locale:         cfg.Locale,
		}),
	}
	if a.Backend != nil && a.Backend.AMQP != nil {
		opts = append(opts, services.WithPublisher(a.Backend.AMQP))
	}
	if cfg.ForecastURL != "" {
		opts = append(opts, services.WithForecaster(
			forecast.NewClient(cfg.ForecastURL, cfg.ForecastTimeout, forecast.WithLogger(a.Logger))))
	}
	return opts
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout and done is
// closed once it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
			return
		}
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup has
// finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
