// Package cmd defines and implements the CLI commands for the sanskritcrawl
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/granthalaya/sanskritcrawl/internal/config"
	"github.com/granthalaya/sanskritcrawl/internal/logging"
	"github.com/granthalaya/sanskritcrawl/internal/orchestrator"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	orc    *orchestrator.Orchestrator
}

func (a *app) close() {
	if a.orc != nil {
		if err := a.orc.Close(); err != nil {
			a.logger.Warn("failed to close adapters", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// newApp is the application factory, a variable so tests can replace it.
var newApp = func(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	orc, err := orchestrator.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize scraper: %w", err)
	}
	return &app{cfg: cfg, logger: logger, orc: orc}, nil
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanskritcrawl",
		Short: "A polite scraper for public Sanskrit text archives.",
		Long: `sanskritcrawl collects Sanskrit e-texts from public archives such as
GRETIL, the Vedic Heritage portal and Ambuda. It rate-limits every source,
honors robots.txt, validates what it fetches and stores the results in a
deduplicated on-disk library.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in sources and settings)")

	cmd.AddCommand(
		newSourcesCmd(),
		newDiscoverCmd(),
		newScrapeCmd(),
		newScrapeAllCmd(),
		newStatusCmd(),
		newValidateCmd(),
		newCleanupCmd(),
		newDuplicatesCmd(),
		newExportCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
