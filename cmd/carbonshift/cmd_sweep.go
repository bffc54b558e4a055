/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/carbonshift/internal/config"
	"github.com/friendsincode/carbonshift/internal/experiment"
	"github.com/friendsincode/carbonshift/internal/progress"
	"github.com/friendsincode/carbonshift/internal/report"
	"github.com/friendsincode/carbonshift/internal/scheduler"
)

var sweepOpts struct {
	name       string
	csvOut     string
	noProgress bool
}

var sweepCmd = &cobra.Command{
	Use:   "sweep PLAN",
	Short: "Run every location, scenario, model and scheduler of a plan",
	Long: `Run the cross product of a YAML plan and print the realized emissions of
each cell with its overhead against the Oracle model of the same location,
scenario and scheduler.

Cells whose schedule does not fit the carbon signal are reported as infeasible
and do not stop the sweep.

Example plan:

  slot_sec: 1
  query_limit: 750
  window: {start: "2024-11-9 19:00:00", end: "2024-11-14 19:00:00"}
  locations:
    - {name: GR, carbon: ci/GR_2024.csv}
  scenarios:
    - {name: Baseline}
    - {name: Pessimistic, add_variance: 1.5}
  models:
    - {label: GNN, runtimes: traces/gnn.csv}
    - {label: Oracle, runtimes: traces/gnn.csv, oracle: true}
  schedulers:
    - {kind: fifo, name: FIFO}
    - {kind: greedy, name: Greedy Delay, search_hours: 12}
`,
	Args: cobra.ExactArgs(1),
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().StringVar(&sweepOpts.name, "name", "", "Sweep name stored with the results (default: plan file name)")
	sweepCmd.Flags().StringVar(&sweepOpts.csvOut, "csv", "", "Also write the results table as CSV (path or s3://bucket/key)")
	sweepCmd.Flags().BoolVar(&sweepOpts.noProgress, "no-progress", false, "Do not draw a progress bar")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	planPath := args[0]

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	data, err := a.resolver.Read(ctx, planPath)
	if err != nil {
		return err
	}
	plan, err := config.ParsePlan(data, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", planPath, err)
	}
	cells, err := experiment.Cells(plan)
	if err != nil {
		return err
	}

	name := sweepOpts.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(planPath), filepath.Ext(planPath))
	}

	var store experiment.Store
	if a.repo != nil {
		store = a.repo
	}
	sweeper := experiment.NewSweeper(
		experiment.NewRunner(a.publisher, logger),
		experiment.NewLoader(a.resolver),
		store,
		a.publisher,
		logger,
	)

	opts := experiment.SweepOptions{Name: name, PlanPath: planPath}
	if !sweepOpts.noProgress {
		bar := progress.NewBar(cmd.ErrOrStderr(), name)
		bar.OnStart(len(cells))
		opts.OnDone = func(experiment.Outcome) { bar.Advance() }
		defer bar.OnFinish()
	}
	opts.Observer = func(cell experiment.Cell) scheduler.Observer {
		return progress.NewLog(logger.With().Str("cell", cell.String()).Logger(), 0)
	}

	res, err := sweeper.Run(ctx, plan, opts)
	if err != nil {
		return err
	}

	records := report.FromOutcomes(res.Outcomes)
	report.AddOverheadVsOracle(records)

	out := cmd.OutOrStdout()
	if res.SweepID != "" {
		fmt.Fprintf(out, "Sweep %s\n\n", res.SweepID)
	}
	report.Render(out, records)
	fmt.Fprintln(out)
	report.RenderMeanOverhead(out, records)

	if sweepOpts.csvOut != "" {
		var buf bytes.Buffer
		if err := report.WriteCSV(&buf, records); err != nil {
			return err
		}
		if err := a.resolver.Write(ctx, sweepOpts.csvOut, buf.Bytes()); err != nil {
			return err
		}
		logger.Info().Str("location", sweepOpts.csvOut).Msg("results written")
	}
	return nil
}
