/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package experiment runs a policy against a workload and carbon signal and
// reports the realized emissions.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/events"
	"github.com/friendsincode/carbonshift/internal/realize"
	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/telemetry"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// Params describes one run.
type Params struct {
	Name   string
	Label  string // model label, e.g. "GNN" or "Oracle"
	Policy scheduler.Policy

	PowerKW     float64 // 0 means carbon.DefaultPowerKW
	Oracle      bool    // schedule against actual runtimes
	LocalSearch bool    // realize blocking on predicted durations
}

// Runner executes specs. It is safe for concurrent use.
type Runner struct {
	logger zerolog.Logger
	events events.Publisher
}

// NewRunner creates a runner. A nil publisher drops events.
func NewRunner(publisher events.Publisher, logger zerolog.Logger) *Runner {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Runner{
		logger: logger.With().Str("component", "experiment").Logger(),
		events: publisher,
	}
}

// Run builds the schedule, rejects it if it overruns the signal, and realizes it.
// An infeasible schedule returns an error wrapping realize.ErrInfeasibleSchedule.
func (r *Runner) Run(ctx context.Context, params Params, sig *carbon.Signal, wl *workload.Workload) (*Result, error) {
	if params.Policy == nil {
		return nil, fmt.Errorf("%w: no policy", scheduler.ErrInvalidConfiguration)
	}
	if sig == nil || wl == nil {
		return nil, errors.New("experiment needs a signal and a workload")
	}
	power := params.PowerKW
	if power == 0 {
		power = carbon.DefaultPowerKW
	}
	policyName := params.Policy.Name()

	ctx, span := telemetry.StartSpan(ctx, "experiment.run",
		attribute.String("experiment", params.Name),
		attribute.String("label", params.Label),
		attribute.String("scheduler", policyName),
		attribute.Bool("oracle", params.Oracle),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := wl
	if params.Oracle {
		w = w.OracleView()
	}

	logger := r.logger.With().Str("experiment", params.Name).Str("label", params.Label).Str("scheduler", policyName).Logger()
	logger.Debug().
		Int("queries", w.Len()).
		Int("horizon_slots", sig.NumSlots()).
		Float64("slot_sec", sig.SlotSeconds()).
		Msg("experiment started")
	r.events.Publish(events.EventRunStarted, events.Payload{
		"experiment": params.Name,
		"label":      params.Label,
		"scheduler":  policyName,
		"queries":    w.Len(),
	})

	buildStart := time.Now()
	schedule, err := params.Policy.BuildSchedule(w, sig)
	buildDuration := time.Since(buildStart)
	telemetry.ScheduleBuildDuration.WithLabelValues(policyName).Observe(buildDuration.Seconds())
	if err != nil {
		return nil, r.fail(span, logger, params, policyName, fmt.Errorf("build schedule: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := realize.CheckFeasible(params.Name, w, schedule, sig.NumSlots()); err != nil {
		telemetry.InfeasibleSchedules.WithLabelValues(policyName).Inc()
		telemetry.RunsTotal.WithLabelValues(policyName, "infeasible").Inc()
		telemetry.RecordError(span, err)
		payload := events.Payload{"experiment": params.Name, "label": params.Label, "scheduler": policyName, "error": err.Error()}
		var infeasible *realize.InfeasibleError
		if errors.As(err, &infeasible) {
			payload["end_slot"] = infeasible.EndSlot
			payload["horizon"] = infeasible.Horizon
		}
		r.events.Publish(events.EventRunInfeasible, payload)
		logger.Warn().Err(err).Msg("schedule does not fit the carbon signal")
		return nil, err
	}

	total, err := realize.Carbon(w, schedule, sig, realize.Options{PowerKW: power, LocalSearch: params.LocalSearch})
	if err != nil {
		return nil, r.fail(span, logger, params, policyName, fmt.Errorf("realize carbon: %w", err))
	}
	makespan, err := realize.Makespan(w, schedule)
	if err != nil {
		return nil, r.fail(span, logger, params, policyName, fmt.Errorf("makespan: %w", err))
	}

	res := &Result{
		Name:            params.Name,
		Label:           params.Label,
		SchedulerName:   policyName,
		Oracle:          w.IsOracle(),
		LocalSearch:     params.LocalSearch,
		CarbonTotal:     total,
		MakespanSlots:   makespan,
		MakespanSeconds: float64(makespan) * sig.SlotSeconds(),
		NumQueries:      w.Len(),
		BuildDuration:   buildDuration,
		Schedule:        schedule,
		Workload:        w,
		Signal:          sig,
		PowerKW:         power,
	}

	telemetry.RunsTotal.WithLabelValues(policyName, "ok").Inc()
	telemetry.AddSpanAttributes(span, map[string]any{
		"carbon_total_gco2": total,
		"makespan_slots":    makespan,
		"queries":           res.NumQueries,
	})
	summary := res.Summary()
	logger.Info().
		Int("queries", res.NumQueries).
		Float64("carbon_total_gco2", total).
		Float64("carbon_per_query_gco2", summary.CarbonPerQuery).
		Float64("makespan_s", res.MakespanSeconds).
		Dur("build", buildDuration).
		Msg("experiment finished")
	r.events.Publish(events.EventRunCompleted, events.Payload{
		"experiment":        params.Name,
		"label":             params.Label,
		"scheduler":         policyName,
		"queries":           res.NumQueries,
		"carbon_total_gco2": total,
		"makespan_slots":    makespan,
	})
	return res, nil
}

func (r *Runner) fail(span trace.Span, logger zerolog.Logger, params Params, policyName string, err error) error {
	telemetry.RunsTotal.WithLabelValues(policyName, "error").Inc()
	telemetry.RecordError(span, err)
	logger.Error().Err(err).Msg("experiment failed")
	r.events.Publish(events.EventRunFailed, events.Payload{
		"experiment": params.Name,
		"label":      params.Label,
		"scheduler":  policyName,
		"error":      err.Error(),
	})
	return err
}

// Result holds the outcome of one run.
type Result struct {
	Name            string
	Label           string
	SchedulerName   string
	Oracle          bool
	LocalSearch     bool
	CarbonTotal     float64 // gCO2
	MakespanSlots   int
	MakespanSeconds float64
	NumQueries      int
	BuildDuration   time.Duration

	Schedule scheduler.Schedule
	Workload *workload.Workload
	Signal   *carbon.Signal
	PowerKW  float64
}

// Summary is the compact set of key metrics of a result.
type Summary struct {
	Name            string
	Label           string
	Scheduler       string
	Oracle          bool
	NumQueries      int
	CarbonTotal     float64
	CarbonPerQuery  float64 // NaN when there are no queries
	CarbonPerSecond float64 // NaN when the makespan is zero
	MakespanSlots   int
	MakespanSeconds float64
	SlotSeconds     float64
	PowerKW         float64
}

// Summary derives per-query and per-second emissions.
func (r *Result) Summary() Summary {
	perQuery := math.NaN()
	if r.NumQueries > 0 {
		perQuery = r.CarbonTotal / float64(r.NumQueries)
	}
	perSecond := math.NaN()
	if r.MakespanSeconds != 0 {
		perSecond = r.CarbonTotal / r.MakespanSeconds
	}
	return Summary{
		Name:            r.Name,
		Label:           r.Label,
		Scheduler:       r.SchedulerName,
		Oracle:          r.Oracle,
		NumQueries:      r.NumQueries,
		CarbonTotal:     r.CarbonTotal,
		CarbonPerQuery:  perQuery,
		CarbonPerSecond: perSecond,
		MakespanSlots:   r.MakespanSlots,
		MakespanSeconds: r.MakespanSeconds,
		SlotSeconds:     r.Signal.SlotSeconds(),
		PowerKW:         r.PowerKW,
	}
}

func (r *Result) String() string {
	s := r.Summary()
	return fmt.Sprintf("%s (%s): scheduler=%s queries=%d carbon_total=%.2f gCO2 carbon/query=%.4f gCO2 makespan=%.1f s",
		s.Name, s.Label, s.Scheduler, s.NumQueries, s.CarbonTotal, s.CarbonPerQuery, s.MakespanSeconds)
}

// Timeline replays the schedule with the same accounting as CarbonTotal.
func (r *Result) Timeline() ([]realize.Execution, error) {
	return realize.Timeline(r.Workload, r.Schedule, r.Signal, realize.Options{PowerKW: r.PowerKW, LocalSearch: r.LocalSearch})
}

// RowOrder selects how Rows sorts the schedule.
type RowOrder string

const (
	OrderByStart   RowOrder = "start"
	OrderByQueryID RowOrder = "query_id"
)

// ParseRowOrder accepts "start" (the default) or "query_id".
func ParseRowOrder(name string) (RowOrder, error) {
	switch RowOrder(strings.ToLower(strings.TrimSpace(name))) {
	case "", OrderByStart:
		return OrderByStart, nil
	case OrderByQueryID, "id":
		return OrderByQueryID, nil
	default:
		return "", fmt.Errorf("unknown row order %q", name)
	}
}

// Row is one planned placement with its durations.
type Row struct {
	QueryID     string
	StartSlot   int
	StartSec    float64
	PredSlots   int
	ActualSlots int
}

// Rows lists the planned schedule. A limit <= 0 returns every row.
func (r *Result) Rows(order RowOrder, limit int) []Row {
	rows := make([]Row, 0, len(r.Schedule))
	for id, start := range r.Schedule {
		q, _ := r.Workload.Lookup(id)
		rows = append(rows, Row{
			QueryID:     id,
			StartSlot:   start,
			StartSec:    float64(start) * r.Signal.SlotSeconds(),
			PredSlots:   q.PredSlots,
			ActualSlots: q.ActualSlots,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if order == OrderByQueryID || rows[i].StartSlot == rows[j].StartSlot {
			return rows[i].QueryID < rows[j].QueryID
		}
		return rows[i].StartSlot < rows[j].StartSlot
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
