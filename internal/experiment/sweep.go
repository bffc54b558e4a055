/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/config"
	"github.com/friendsincode/carbonshift/internal/events"
	"github.com/friendsincode/carbonshift/internal/models"
	"github.com/friendsincode/carbonshift/internal/progress"
	"github.com/friendsincode/carbonshift/internal/realize"
	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/telemetry"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// Store persists sweeps and runs; results.Repository implements it.
type Store interface {
	CreateSweep(ctx context.Context, name, planPath string) (*models.Sweep, error)
	FinishSweep(ctx context.Context, sweepID string, runs int) error
	SaveRun(ctx context.Context, run *models.ExperimentRun, rows []models.ScheduleRow) error
}

// Cell is one combination of a sweep.
type Cell struct {
	Index     int
	Location  string
	Scenario  string
	Model     string
	Scheduler string

	location  config.LocationPlan
	scenario  config.ScenarioPlan
	model     config.ModelPlan
	scheduler config.SchedulerPlan
}

func (c Cell) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", c.Location, c.Scenario, c.Model, c.Scheduler)
}

// Outcome is the result of one cell. Err is set, and Result nil, when the
// schedule did not fit the carbon signal.
type Outcome struct {
	Cell   Cell
	Result *Result
	Err    error
	RunID  string
}

// Infeasible reports whether the cell was rejected by the feasibility check.
func (o Outcome) Infeasible() bool {
	return errors.Is(o.Err, realize.ErrInfeasibleSchedule)
}

// SweepResult holds every outcome in plan order.
type SweepResult struct {
	SweepID  string
	Outcomes []Outcome
}

// SweepOptions tunes a sweep.
type SweepOptions struct {
	Name     string
	PlanPath string
	// Observer, when set, returns a progress observer for a cell.
	Observer func(Cell) scheduler.Observer
	// OnDone is called after each cell; it may run concurrently.
	OnDone func(Outcome)
}

// Sweeper runs every cell of a plan.
type Sweeper struct {
	runner *Runner
	loader *Loader
	store  Store
	events events.Publisher
	logger zerolog.Logger
}

// NewSweeper wires a sweeper. store and publisher may be nil.
func NewSweeper(runner *Runner, loader *Loader, store Store, publisher events.Publisher, logger zerolog.Logger) *Sweeper {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Sweeper{
		runner: runner,
		loader: loader,
		store:  store,
		events: publisher,
		logger: logger.With().Str("component", "sweep").Logger(),
	}
}

// Cells expands a plan into its cells: locations x scenarios x models x schedulers.
func Cells(plan *config.Plan) ([]Cell, error) {
	var cells []Cell
	for _, loc := range plan.Locations {
		for _, sc := range plan.Scenarios {
			for _, m := range plan.Models {
				for _, sp := range plan.Schedulers {
					policy, err := scheduler.New(sp.SchedulerConfig(plan.PowerKW))
					if err != nil {
						return nil, err
					}
					cells = append(cells, Cell{
						Index:     len(cells),
						Location:  loc.Name,
						Scenario:  sc.Name,
						Model:     m.Label,
						Scheduler: policy.Name(),
						location:  loc,
						scenario:  sc,
						model:     m,
						scheduler: sp,
					})
				}
			}
		}
	}
	return cells, nil
}

// Run executes the plan with at most plan.Concurrency cells in flight.
// Infeasible cells are recorded and do not stop the sweep; any other error does.
func (s *Sweeper) Run(ctx context.Context, plan *config.Plan, opts SweepOptions) (*SweepResult, error) {
	cells, err := Cells(plan)
	if err != nil {
		return nil, err
	}
	start, end, err := config.ParseWindow(plan.Window.Start, plan.Window.End)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "experiment.sweep")
	defer span.End()

	signals, err := s.loadSignals(ctx, plan, carbon.SourceOptions{
		UseLifecycle:  plan.Lifecycle(),
		Start:         start,
		End:           end,
		UpsampleToSec: plan.SlotSec,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	result := &SweepResult{Outcomes: make([]Outcome, len(cells))}
	if s.store != nil {
		sweep, err := s.store.CreateSweep(ctx, opts.Name, opts.PlanPath)
		if err != nil {
			return nil, err
		}
		result.SweepID = sweep.ID
	}

	s.logger.Info().
		Str("sweep_id", result.SweepID).
		Int("cells", len(cells)).
		Int("concurrency", plan.Concurrency).
		Msg("sweep started")
	s.events.Publish(events.EventSweepStarted, events.Payload{"sweep_id": result.SweepID, "cells": len(cells)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.Concurrency)
	for i := range cells {
		cell := cells[i]
		g.Go(func() error {
			outcome, err := s.runCell(gctx, plan, cell, signals[cell.Location], result.SweepID, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", cell, err)
			}
			result.Outcomes[cell.Index] = outcome
			if opts.OnDone != nil {
				opts.OnDone(outcome)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.store != nil {
		if err := s.store.FinishSweep(ctx, result.SweepID, len(cells)); err != nil {
			return nil, err
		}
	}
	infeasible := 0
	for _, o := range result.Outcomes {
		if o.Infeasible() {
			infeasible++
		}
	}
	s.logger.Info().
		Str("sweep_id", result.SweepID).
		Int("cells", len(cells)).
		Int("infeasible", infeasible).
		Msg("sweep finished")
	s.events.Publish(events.EventSweepCompleted, events.Payload{
		"sweep_id":   result.SweepID,
		"cells":      len(cells),
		"infeasible": infeasible,
	})
	return result, nil
}

func (s *Sweeper) loadSignals(ctx context.Context, plan *config.Plan, opts carbon.SourceOptions) (map[string]*carbon.Signal, error) {
	signals := make([]*carbon.Signal, len(plan.Locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.Concurrency)
	for i, loc := range plan.Locations {
		g.Go(func() error {
			sig, window, err := s.loader.Signal(gctx, loc.Carbon, opts)
			if err != nil {
				return fmt.Errorf("location %s: %w", loc.Name, err)
			}
			s.logger.Debug().
				Str("location", loc.Name).
				Time("first", window.First).
				Time("last", window.Last).
				Float64("native_slot_sec", window.NativeSlotSec).
				Int("slots", sig.NumSlots()).
				Msg("carbon signal loaded")
			signals[i] = sig
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]*carbon.Signal, len(signals))
	for i, loc := range plan.Locations {
		out[loc.Name] = signals[i]
	}
	return out, nil
}

func (s *Sweeper) runCell(ctx context.Context, plan *config.Plan, cell Cell, sig *carbon.Signal, sweepID string, opts SweepOptions) (Outcome, error) {
	outcome := Outcome{Cell: cell}
	started := time.Now().UTC()

	wl, err := s.loader.Workload(ctx, cell.model.Runtimes, workload.BuildOptions{
		SlotSec:  plan.SlotSec,
		Variance: cell.scenario.AddVariance,
		Limit:    plan.QueryLimit,
		Oracle:   cell.model.Oracle,
	})
	if err != nil {
		return outcome, err
	}

	policy, err := scheduler.New(cell.scheduler.SchedulerConfig(plan.PowerKW))
	if err != nil {
		return outcome, err
	}
	if greedy, ok := policy.(*scheduler.GreedyDefer); ok {
		observers := scheduler.MultiObserver{progress.NewMetrics(cell.Scheduler)}
		if opts.Observer != nil {
			observers = append(observers, opts.Observer(cell))
		}
		policy = greedy.WithObserver(observers)
	}

	params := Params{
		Name:        cell.String(),
		Label:       cell.Model,
		Policy:      policy,
		PowerKW:     plan.PowerKW,
		Oracle:      cell.model.Oracle,
		LocalSearch: cell.scheduler.LocalSearch,
	}
	res, err := s.runner.Run(ctx, params, sig, wl)
	switch {
	case errors.Is(err, realize.ErrInfeasibleSchedule):
		outcome.Err = err
	case err != nil:
		return outcome, err
	default:
		outcome.Result = res
		telemetry.RealizedCarbon.WithLabelValues(cell.Location, cell.Scenario, cell.Model, cell.Scheduler).Set(res.CarbonTotal)
	}

	if s.store == nil {
		return outcome, nil
	}
	run, rows, err := NewRunRecord(RunInfo{
		SweepID:     sweepID,
		Cell:        cell,
		OrderPolicy: cell.scheduler.OrderPolicy,
		SearchHours: cell.scheduler.SearchHours,
		AddVariance: cell.scenario.AddVariance,
		Queries:     wl.Len(),
		Signal:      sig,
		PowerKW:     plan.PowerKW,
		LocalSearch: cell.scheduler.LocalSearch,
		Oracle:      cell.model.Oracle,
		StartedAt:   started,
	}, outcome.Result, outcome.Err)
	if err != nil {
		return outcome, err
	}
	if err := s.store.SaveRun(ctx, run, rows); err != nil {
		return outcome, err
	}
	outcome.RunID = run.ID
	return outcome, nil
}
