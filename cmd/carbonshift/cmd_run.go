/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/config"
	"github.com/friendsincode/carbonshift/internal/experiment"
	"github.com/friendsincode/carbonshift/internal/progress"
	"github.com/friendsincode/carbonshift/internal/realize"
	"github.com/friendsincode/carbonshift/internal/report"
	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/workload"
)

var runOpts struct {
	carbonRef   string
	runtimesRef string
	kind        string
	name        string
	label       string
	location    string
	scenario    string
	localSearch bool
	noProgress  bool

	rows        int
	rowOrder    string
	scheduleOut string
	timelineOut string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule one workload against one carbon-intensity trace",
	Long: `Build a schedule with one policy, check that it fits the carbon signal and
report the realized emissions.

Inputs may be local paths or s3://bucket/key references.

Examples:
  # FIFO baseline on the life-cycle intensities
  carbonshift run --carbon ci/GR_2024.csv --runtimes traces/gnn.csv

  # Greedy deferral with a 6 hour look-ahead on 5-minute slots
  carbonshift run --carbon ci/GR_2024.csv --runtimes traces/gnn.csv \
    --policy greedy --search-hours 6 --slot-sec 300 --schedule-out schedule.csv
`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.carbonRef, "carbon", "", "Carbon-intensity CSV (path or s3://bucket/key)")
	f.StringVar(&runOpts.runtimesRef, "runtimes", "", "Runtime predictions CSV with prediction and label columns")
	f.StringVar(&runOpts.kind, "policy", "fifo", "Scheduling policy: fifo or greedy")
	f.StringVar(&runOpts.name, "name", "", "Display name of the policy")
	f.StringVar(&runOpts.label, "label", "", "Model label recorded with the result (default GNN, or Oracle with --oracle)")
	f.StringVar(&runOpts.location, "location", "", "Location recorded with the result (default: carbon file name)")
	f.StringVar(&runOpts.scenario, "scenario", "Baseline", "Scenario recorded with the result")
	f.BoolVar(&runOpts.localSearch, "local-search", false, "Realize blocking on predicted instead of actual durations")
	f.BoolVar(&runOpts.noProgress, "no-progress", false, "Do not draw a progress bar")

	f.Float64("power-kw", 0, "Constant power draw in kW")
	f.Float64("slot-sec", 0, "Slot length in seconds")
	f.Float64("search-hours", 0, "Greedy look-ahead window in hours")
	f.Int("candidate-step", 0, "Greedy candidate stride in slots")
	f.String("order", "", "FIFO ordering: arrival, pred_shortest_first, pred_longest_first, actual_shortest_first, actual_longest_first, low_error_first, high_error_first, random")
	f.Bool("oracle", false, "Schedule with actual runtimes as predictions")
	f.Float64("add-variance", 0, "Multiplier applied to predicted runtimes")
	f.Bool("direct", false, "Use direct instead of life-cycle intensities")
	f.Int("limit", 0, "Keep only the first N queries")
	f.String("start", "", "Drop carbon samples before this timestamp")
	f.String("end", "", "Drop carbon samples after this timestamp")

	f.IntVar(&runOpts.rows, "rows", 20, "Schedule rows to print (0 prints none, -1 prints all)")
	f.StringVar(&runOpts.rowOrder, "row-order", "start", "Order of printed rows: start or query_id")
	f.StringVar(&runOpts.scheduleOut, "schedule-out", "", "Write the full planned schedule as CSV (path or s3://bucket/key)")
	f.StringVar(&runOpts.timelineOut, "timeline-out", "", "Write the realized timeline as CSV (path or s3://bucket/key)")

	_ = runCmd.MarkFlagRequired("carbon")
	_ = runCmd.MarkFlagRequired("runtimes")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays explicitly set flags on the loaded configuration.
func applyRunFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	var err error
	if f.Changed("power-kw") {
		cfg.PowerKW, err = f.GetFloat64("power-kw")
	}
	if err == nil && f.Changed("slot-sec") {
		cfg.SlotSec, err = f.GetFloat64("slot-sec")
		if err == nil && !f.Changed("candidate-step") && os.Getenv("CARBONSHIFT_CANDIDATE_STEP_SLOTS") == "" {
			cfg.CandidateStepSlots = config.DefaultCandidateStep(cfg.SlotSec)
		}
	}
	if err == nil && f.Changed("search-hours") {
		cfg.SearchHours, err = f.GetFloat64("search-hours")
	}
	if err == nil && f.Changed("candidate-step") {
		cfg.CandidateStepSlots, err = f.GetInt("candidate-step")
	}
	if err == nil && f.Changed("order") {
		var order string
		order, err = f.GetString("order")
		if err == nil {
			cfg.OrderPolicy, err = workload.ParseOrderPolicy(order)
		}
	}
	if err == nil && f.Changed("oracle") {
		cfg.Oracle, err = f.GetBool("oracle")
	}
	if err == nil && f.Changed("add-variance") {
		cfg.AddVariance, err = f.GetFloat64("add-variance")
	}
	if err == nil && f.Changed("direct") {
		var direct bool
		direct, err = f.GetBool("direct")
		cfg.UseLifecycle = !direct
	}
	if err == nil && f.Changed("limit") {
		cfg.QueryLimit, err = f.GetInt("limit")
	}
	if err == nil && f.Changed("start") {
		cfg.WindowStart, err = f.GetString("start")
	}
	if err == nil && f.Changed("end") {
		cfg.WindowEnd, err = f.GetString("end")
	}
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := applyRunFlags(cmd); err != nil {
		return err
	}
	rowOrder, err := experiment.ParseRowOrder(runOpts.rowOrder)
	if err != nil {
		return err
	}
	start, end, err := cfg.Window()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	loader := experiment.NewLoader(a.resolver)
	sig, window, err := loader.Signal(ctx, runOpts.carbonRef, carbon.SourceOptions{
		UseLifecycle:  cfg.UseLifecycle,
		Start:         start,
		End:           end,
		UpsampleToSec: cfg.SlotSec,
	})
	if err != nil {
		return err
	}
	wl, err := loader.Workload(ctx, runOpts.runtimesRef, workload.BuildOptions{
		SlotSec:  cfg.SlotSec,
		Variance: cfg.AddVariance,
		Limit:    cfg.QueryLimit,
		Oracle:   cfg.Oracle,
	})
	if err != nil {
		return err
	}
	logger.Info().
		Time("first", window.First).
		Time("last", window.Last).
		Int("slots", sig.NumSlots()).
		Int("queries", wl.Len()).
		Msg("inputs loaded")

	policy, err := scheduler.New(scheduler.Config{
		Kind:               scheduler.Kind(runOpts.kind),
		Name:               runOpts.name,
		Order:              cfg.OrderPolicy,
		SearchHours:        cfg.SearchHours,
		CandidateStepSlots: cfg.CandidateStepSlots,
		PowerKW:            cfg.PowerKW,
	})
	if err != nil {
		return err
	}
	if greedy, ok := policy.(*scheduler.GreedyDefer); ok {
		observers := scheduler.MultiObserver{
			progress.NewMetrics(greedy.Name()),
			progress.NewLog(logger, 1000),
		}
		if !runOpts.noProgress {
			observers = append(observers, progress.NewBar(cmd.ErrOrStderr(), greedy.Name()))
		}
		policy = greedy.WithObserver(observers)
	}

	label := runOpts.label
	if label == "" {
		label = "GNN"
		if cfg.Oracle {
			label = config.OracleModel
		}
	}
	cell := experiment.Cell{
		Location:  runOpts.location,
		Scenario:  runOpts.scenario,
		Model:     label,
		Scheduler: policy.Name(),
	}
	if cell.Location == "" {
		cell.Location = strings.TrimSuffix(filepath.Base(runOpts.carbonRef), filepath.Ext(runOpts.carbonRef))
	}

	startedAt := time.Now().UTC()
	res, runErr := experiment.NewRunner(a.publisher, logger).Run(ctx, experiment.Params{
		Name:        cell.String(),
		Label:       label,
		Policy:      policy,
		PowerKW:     cfg.PowerKW,
		Oracle:      cfg.Oracle,
		LocalSearch: runOpts.localSearch,
	}, sig, wl)
	if runErr != nil && !errors.Is(runErr, realize.ErrInfeasibleSchedule) {
		return runErr
	}

	if a.repo != nil {
		run, rows, err := experiment.NewRunRecord(experiment.RunInfo{
			Cell:        cell,
			OrderPolicy: string(cfg.OrderPolicy),
			SearchHours: cfg.SearchHours,
			AddVariance: cfg.AddVariance,
			Queries:     wl.Len(),
			Signal:      sig,
			PowerKW:     cfg.PowerKW,
			LocalSearch: runOpts.localSearch,
			Oracle:      cfg.Oracle,
			StartedAt:   startedAt,
		}, res, runErr)
		if err != nil {
			return err
		}
		if err := a.repo.SaveRun(ctx, run, rows); err != nil {
			return err
		}
		logger.Info().Str("run_id", run.ID).Msg("run saved")
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.String())
	if runOpts.rows != 0 {
		fmt.Fprintln(out)
		report.RenderSchedule(out, res.Rows(rowOrder, runOpts.rows))
	}

	if runOpts.scheduleOut != "" {
		var buf bytes.Buffer
		if err := report.WriteScheduleCSV(&buf, res.Rows(rowOrder, 0)); err != nil {
			return err
		}
		if err := a.resolver.Write(ctx, runOpts.scheduleOut, buf.Bytes()); err != nil {
			return err
		}
	}
	if runOpts.timelineOut != "" {
		timeline, err := res.Timeline()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := report.WriteTimelineCSV(&buf, timeline); err != nil {
			return err
		}
		if err := a.resolver.Write(ctx, runOpts.timelineOut, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
