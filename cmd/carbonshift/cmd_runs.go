/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/friendsincode/carbonshift/internal/db"
	"github.com/friendsincode/carbonshift/internal/models"
	"github.com/friendsincode/carbonshift/internal/report"
	"github.com/friendsincode/carbonshift/internal/results"
)

var (
	runsFilter  results.RunFilter
	runsStatus  string
	sweepsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored experiment runs",
	Long: `List runs stored in the result database, newest first.

Requires CARBONSHIFT_DB_DSN (or --db-dsn).`,
	RunE: runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show one stored run and its realized schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var sweepsCmd = &cobra.Command{
	Use:   "sweeps",
	Short: "List stored sweeps",
	RunE:  runSweeps,
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsFilter.SweepID, "sweep", "", "Only runs of this sweep")
	f.StringVar(&runsFilter.Location, "location", "", "Only runs at this location")
	f.StringVar(&runsFilter.Model, "model", "", "Only runs of this model label")
	f.StringVar(&runsFilter.Scheduler, "scheduler", "", "Only runs of this scheduler")
	f.StringVar(&runsStatus, "status", "", "Only runs with this status (completed, infeasible, failed)")
	f.IntVar(&runsFilter.Limit, "limit", 50, "Maximum runs to list (0 lists all)")

	sweepsCmd.Flags().IntVar(&sweepsLimit, "limit", 20, "Maximum sweeps to list (0 lists all)")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(sweepsCmd)
}

// openRepository connects to the result store for read-only commands.
func openRepository() (*results.Repository, func(), error) {
	if err := loadConfig(); err != nil {
		return nil, nil, err
	}
	if cfg.DBDSN == "" {
		return nil, nil, errors.New("no result database configured: set CARBONSHIFT_DB_DSN or --db-dsn")
	}
	database, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := db.Close(database); err != nil {
			logger.Warn().Err(err).Msg("close result store")
		}
	}
	return results.NewRepository(database, logger), closeFn, nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openRepository()
	if err != nil {
		return err
	}
	defer closeFn()

	runsFilter.Status = models.RunStatus(runsStatus)
	runs, err := repo.ListRuns(cmd.Context(), runsFilter)
	if err != nil {
		return err
	}
	report.RenderRuns(cmd.OutOrStdout(), runs)
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openRepository()
	if err != nil {
		return err
	}
	defer closeFn()

	run, err := repo.GetRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	rows, err := repo.ScheduleRows(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	report.RenderRun(cmd.OutOrStdout(), run, rows)
	return nil
}

func runSweeps(cmd *cobra.Command, args []string) error {
	repo, closeFn, err := openRepository()
	if err != nil {
		return err
	}
	defer closeFn()

	sweeps, err := repo.ListSweeps(cmd.Context(), sweepsLimit)
	if err != nil {
		return err
	}
	report.RenderSweeps(cmd.OutOrStdout(), sweeps)
	return nil
}
