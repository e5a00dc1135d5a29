package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"budgetflow/internal/cli"
	"budgetflow/internal/core"
	"budgetflow/internal/log"
	"budgetflow/internal/services"
)

// env is what every subcommand works with once the store is open.
type env struct {
	session *services.Session
	format  *core.Formatter
	close   func()
}

// opener opens the configured store. Tests substitute an in-memory one.
type opener func(ctx context.Context, logLevel string) (*env, error)

func openSession(ctx context.Context, logLevel string) (*env, error) {
	if err := cli.LoadEnvFile(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	lvl := log.ParseLevel(logLevel)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentCLI,
		Handler:   slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}),
	})

	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, err
	}
	app, err := cli.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	session := services.NewSession(app.Vocab, app.Backend.Records, app.SessionOptions()...)
	return &env{
		session: session,
		format:  core.NewFormatter(cfg.Locale),
		close: func() {
			session.Close()
			_ = app.Close()
		},
	}, nil
}

func newRootCmd(open opener) *cobra.Command {
	var (
		logLevel string
		e        *env
	)
	root := &cobra.Command{
		Use:          "budgetctl",
		Short:        "Monthly budget CLI",
		Long:         "Build money-flow graphs, inspect stored months and seed budget sliders.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			e, err = open(cmd.Context(), logLevel)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if e != nil && e.close != nil {
				e.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	current := func() *env { return e }
	root.AddCommand(
		newBuildCmd(current),
		newMonthsCmd(current),
		newShowCmd(current),
		newSlidersCmd(current),
	)
	return root
}
