/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package experiment

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/events"
	"github.com/friendsincode/carbonshift/internal/realize"
	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/workload"
)

func testSignal(t *testing.T, ci []float64, slotSec float64) *carbon.Signal {
	t.Helper()
	sig, err := carbon.New(ci, slotSec)
	if err != nil {
		t.Fatalf("new signal: %v", err)
	}
	return sig
}

func testWorkload(t *testing.T, queries []workload.Query) *workload.Workload {
	t.Helper()
	w, err := workload.New(queries, false)
	if err != nil {
		t.Fatalf("new workload: %v", err)
	}
	return w
}

func fifo(t *testing.T) scheduler.Policy {
	t.Helper()
	p, err := scheduler.NewArrival(scheduler.ArrivalConfig{})
	if err != nil {
		t.Fatalf("fifo: %v", err)
	}
	return p
}

func TestRunSingleQueryScenario(t *testing.T) {
	bus := events.NewBus()
	completed := bus.Subscribe(events.EventRunCompleted)
	runner := NewRunner(bus, zerolog.Nop())

	sig := testSignal(t, []float64{10, 20, 10, 40}, 3600)
	wl := testWorkload(t, []workload.Query{{ID: "q0", PredSlots: 1, ActualSlots: 1}})

	res, err := runner.Run(context.Background(), Params{Name: "scenario", Label: "FIFO", Policy: fifo(t), PowerKW: 0.5}, sig, wl)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.CarbonTotal != 5.0 {
		t.Fatalf("carbon = %v, want 5", res.CarbonTotal)
	}
	if res.MakespanSlots != 1 || res.MakespanSeconds != 3600 {
		t.Fatalf("makespan = %d slots / %v s", res.MakespanSlots, res.MakespanSeconds)
	}
	if res.Schedule["q0"] != 0 {
		t.Fatalf("schedule = %v", res.Schedule)
	}

	s := res.Summary()
	if s.CarbonPerQuery != 5.0 || s.CarbonPerSecond != 5.0/3600 || s.SlotSeconds != 3600 || s.PowerKW != 0.5 {
		t.Fatalf("summary = %+v", s)
	}
	if !strings.Contains(res.String(), "carbon_total=5.00 gCO2") {
		t.Fatalf("String() = %q", res.String())
	}

	select {
	case payload := <-completed:
		if payload["carbon_total_gco2"] != 5.0 {
			t.Fatalf("event payload = %v", payload)
		}
	default:
		t.Fatal("expected run.completed event")
	}
}

func TestRunDefaultsPower(t *testing.T) {
	runner := NewRunner(nil, zerolog.Nop())
	sig := testSignal(t, []float64{100, 100}, 3600)
	wl := testWorkload(t, []workload.Query{{ID: "q0", PredSlots: 1, ActualSlots: 1}})

	res, err := runner.Run(context.Background(), Params{Policy: fifo(t)}, sig, wl)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.PowerKW != carbon.DefaultPowerKW || math.Abs(res.CarbonTotal-15) > 1e-9 {
		t.Fatalf("power %v carbon %v", res.PowerKW, res.CarbonTotal)
	}
}

func TestRunRejectsInfeasibleSchedule(t *testing.T) {
	bus := events.NewBus()
	infeasible := bus.Subscribe(events.EventRunInfeasible)
	runner := NewRunner(bus, zerolog.Nop())

	sig := testSignal(t, []float64{1, 1}, 3600)
	wl := testWorkload(t, []workload.Query{
		{ID: "a", PredSlots: 2, ActualSlots: 1},
		{ID: "b", PredSlots: 2, ActualSlots: 1},
	})

	_, err := runner.Run(context.Background(), Params{Name: "tight", Policy: fifo(t)}, sig, wl)
	if !errors.Is(err, realize.ErrInfeasibleSchedule) {
		t.Fatalf("expected ErrInfeasibleSchedule, got %v", err)
	}
	select {
	case payload := <-infeasible:
		if payload["horizon"] != 2 {
			t.Fatalf("payload = %v", payload)
		}
	default:
		t.Fatal("expected run.infeasible event")
	}
}

func TestRunOracleUsesActualDurations(t *testing.T) {
	runner := NewRunner(nil, zerolog.Nop())
	sig := testSignal(t, []float64{1, 1, 1, 1}, 3600)
	wl := testWorkload(t, []workload.Query{
		{ID: "a", PredSlots: 3, ActualSlots: 1},
		{ID: "b", PredSlots: 3, ActualSlots: 1},
	})

	// Predicted durations overrun the horizon; actual ones fit.
	if _, err := runner.Run(context.Background(), Params{Policy: fifo(t)}, sig, wl); !errors.Is(err, realize.ErrInfeasibleSchedule) {
		t.Fatalf("expected infeasible without oracle, got %v", err)
	}
	res, err := runner.Run(context.Background(), Params{Policy: fifo(t), Oracle: true}, sig, wl)
	if err != nil {
		t.Fatalf("oracle run: %v", err)
	}
	if !res.Oracle || res.MakespanSlots != 2 {
		t.Fatalf("oracle result = %+v", res)
	}
}

func TestRunOracleFromRuntimesPlansOnActualDurations(t *testing.T) {
	wl, err := workload.FromRuntimes([]workload.Runtime{{PredictedSec: 1, ActualSec: 3}}, workload.BuildOptions{SlotSec: 1, Oracle: true})
	if err != nil {
		t.Fatalf("from runtimes: %v", err)
	}
	greedy, err := scheduler.NewGreedyDefer(scheduler.GreedyConfig{SearchHours: 1, CandidateStepSlots: 1})
	if err != nil {
		t.Fatalf("greedy: %v", err)
	}

	// A one-slot query would start at 0; three slots are cheapest from slot 4.
	sig := testSignal(t, []float64{1, 9, 9, 9, 1, 1, 1}, 1)
	res, err := NewRunner(nil, zerolog.Nop()).Run(context.Background(), Params{Policy: greedy, Oracle: true}, sig, wl)
	if err != nil {
		t.Fatalf("oracle run: %v", err)
	}
	for _, q := range res.Workload.Queries() {
		if q.PredSlots != q.ActualSlots {
			t.Fatalf("oracle run scheduled %s with pred=%d actual=%d", q.ID, q.PredSlots, q.ActualSlots)
		}
	}
	if got := res.Schedule["q0"]; got != 4 {
		t.Fatalf("q0 start = %d, want 4", got)
	}
}

func TestRunEmptyWorkloadHasUndefinedRates(t *testing.T) {
	runner := NewRunner(nil, zerolog.Nop())
	res, err := runner.Run(context.Background(), Params{Policy: fifo(t)}, testSignal(t, []float64{1, 2}, 60), testWorkload(t, nil))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	s := res.Summary()
	if s.CarbonTotal != 0 || !math.IsNaN(s.CarbonPerQuery) || !math.IsNaN(s.CarbonPerSecond) {
		t.Fatalf("summary = %+v", s)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(nil, zerolog.Nop())
	_, err := runner.Run(ctx, Params{Policy: fifo(t)}, testSignal(t, []float64{1, 2}, 60), testWorkload(t, nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunRequiresPolicy(t *testing.T) {
	runner := NewRunner(nil, zerolog.Nop())
	_, err := runner.Run(context.Background(), Params{}, testSignal(t, []float64{1, 2}, 60), testWorkload(t, nil))
	if !errors.Is(err, scheduler.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestRows(t *testing.T) {
	sig := testSignal(t, []float64{1, 1, 1, 1, 1, 1}, 300)
	res := &Result{
		Schedule: scheduler.Schedule{"c": 0, "a": 3, "b": 3},
		Workload: testWorkload(t, []workload.Query{
			{ID: "a", PredSlots: 1, ActualSlots: 2},
			{ID: "b", PredSlots: 2, ActualSlots: 1},
			{ID: "c", PredSlots: 3, ActualSlots: 3},
		}),
		Signal: sig,
	}

	byStart := res.Rows(OrderByStart, 0)
	if got := rowIDs(byStart); got != "c,a,b" {
		t.Fatalf("start order = %s", got)
	}
	if byStart[1].StartSec != 900 || byStart[1].PredSlots != 1 || byStart[1].ActualSlots != 2 {
		t.Fatalf("row = %+v", byStart[1])
	}
	if got := rowIDs(res.Rows(OrderByQueryID, 0)); got != "a,b,c" {
		t.Fatalf("id order = %s", got)
	}
	if got := rowIDs(res.Rows(OrderByStart, 2)); got != "c,a" {
		t.Fatalf("limited = %s", got)
	}
}

func rowIDs(rows []Row) string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.QueryID
	}
	return strings.Join(ids, ",")
}

func TestParseRowOrder(t *testing.T) {
	for in, want := range map[string]RowOrder{"": OrderByStart, "START": OrderByStart, "query_id": OrderByQueryID, "id": OrderByQueryID} {
		got, err := ParseRowOrder(in)
		if err != nil || got != want {
			t.Errorf("ParseRowOrder(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRowOrder("carbon"); err == nil {
		t.Fatal("expected error for unknown order")
	}
}
