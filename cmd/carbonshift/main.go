/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/carbonshift/internal/config"
	"github.com/friendsincode/carbonshift/internal/logging"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	flagLogLevel    string
	flagMetricsAddr string
	flagDBDSN       string
)

var rootCmd = &cobra.Command{
	Use:   "carbonshift",
	Short: "Carbon-aware scheduling of analytical queries",
	Long: `carbonshift decides when each query of a batch workload runs on a single
execution resource so that the realized carbon emissions, given an hourly or
5-minute grid carbon-intensity trace, are as low as possible.

Configuration is read from CARBONSHIFT_* environment variables; flags override it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	rootCmd.PersistentFlags().StringVar(&flagDBDSN, "db-dsn", "", "Persist results to this database (overrides CARBONSHIFT_DB_DSN)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagMetricsAddr != "" {
		cfg.MetricsBind = flagMetricsAddr
	}
	if flagDBDSN != "" {
		cfg.DBDSN = flagDBDSN
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger = logging.Setup(cfg.Environment, cfg.LogLevel)
	return nil
}
