/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/friendsincode/carbonshift/internal/workload"
)

func TestGreedyScenario(t *testing.T) {
	sig := testSignal(t, []float64{10, 20, 10, 40}, 3600)
	w := testWorkload(t, []workload.Query{
		{ID: "q0", PredSlots: 2, ActualSlots: 2},
		{ID: "q1", PredSlots: 1, ActualSlots: 1},
	}, true)

	policy, err := NewGreedyDefer(GreedyConfig{SearchHours: 4, CandidateStepSlots: 1})
	if err != nil {
		t.Fatalf("new greedy: %v", err)
	}
	got, err := policy.BuildSchedule(w, sig)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Step 1: q1 at slot 0 costs 10 against q0's best of 30, so q1 goes first.
	// Step 2: cursor is 1; q0 can start at 1 (20+10) or 2 (10+40).
	want := Schedule{"q1": 0, "q0": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("schedule = %v, want %v", got, want)
	}
}

func TestGreedyDefersWithinWindow(t *testing.T) {
	sig := testSignal(t, []float64{50, 50, 50, 1, 1, 1}, 3600)
	w := testWorkload(t, []workload.Query{{ID: "q0", PredSlots: 1, ActualSlots: 1}}, false)

	tests := []struct {
		name        string
		searchHours float64
		want        int
	}{
		{"window too short", 2, 0},
		{"window reaches cheap slot", 3, 3},
		{"zero window starts immediately", 0, 0},
		{"fractional hours round up", 2.1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewGreedyDefer(GreedyConfig{SearchHours: tt.searchHours, CandidateStepSlots: 1})
			if err != nil {
				t.Fatalf("new greedy: %v", err)
			}
			got, _ := policy.BuildSchedule(w, sig)
			if got["q0"] != tt.want {
				t.Fatalf("start = %d, want %d", got["q0"], tt.want)
			}
		})
	}
}

func TestGreedyCandidateStep(t *testing.T) {
	sig := testSignal(t, []float64{9, 1, 9, 9, 5, 9}, 3600)
	w := testWorkload(t, []workload.Query{{ID: "q0", PredSlots: 1, ActualSlots: 1}}, false)

	fine, _ := NewGreedyDefer(GreedyConfig{SearchHours: 6, CandidateStepSlots: 1})
	coarse, _ := NewGreedyDefer(GreedyConfig{SearchHours: 6, CandidateStepSlots: 2})

	if got, _ := fine.BuildSchedule(w, sig); got["q0"] != 1 {
		t.Fatalf("step 1 start = %d, want 1", got["q0"])
	}
	if got, _ := coarse.BuildSchedule(w, sig); got["q0"] != 4 {
		t.Fatalf("step 2 start = %d, want 4", got["q0"])
	}
}

func TestGreedyTieBreaksOnQueryID(t *testing.T) {
	sig := testSignal(t, []float64{5, 5, 5, 5}, 3600)
	w := testWorkload(t, []workload.Query{
		{ID: "q2", PredSlots: 1, ActualSlots: 1},
		{ID: "q10", PredSlots: 1, ActualSlots: 1},
		{ID: "q1", PredSlots: 1, ActualSlots: 1},
	}, false)

	rec := &Recorder{}
	policy, _ := NewGreedyDefer(GreedyConfig{SearchHours: 4, CandidateStepSlots: 1, Observer: rec})
	got, _ := policy.BuildSchedule(w, sig)

	want := Schedule{"q1": 0, "q10": 1, "q2": 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("schedule = %v, want %v", got, want)
	}
	order := make([]string, len(rec.Assignments))
	for i, a := range rec.Assignments {
		order[i] = a.QueryID
	}
	if fmt.Sprint(order) != "[q1 q10 q2]" {
		t.Fatalf("assignment order = %v", order)
	}
}

func TestGreedyCursorIsMonotonic(t *testing.T) {
	ci := make([]float64, 200)
	for i := range ci {
		ci[i] = float64((i*37)%101 + 1)
	}
	sig := testSignal(t, ci, 1800)

	queries := make([]workload.Query, 15)
	for i := range queries {
		queries[i] = workload.Query{ID: fmt.Sprintf("q%d", i), PredSlots: 1 + (i*7)%5, ActualSlots: 1 + (i*3)%6}
	}
	w := testWorkload(t, queries, false)

	rec := &Recorder{}
	policy, _ := NewGreedyDefer(GreedyConfig{SearchHours: 6, CandidateStepSlots: 1, Observer: rec})
	schedule, err := policy.BuildSchedule(w, sig)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if rec.Total != len(queries) || len(rec.Assignments) != len(queries) || !rec.Finished {
		t.Fatalf("observer saw total=%d assignments=%d finished=%v", rec.Total, len(rec.Assignments), rec.Finished)
	}
	prevCursor := 0
	for _, a := range rec.Assignments {
		if a.Start < prevCursor {
			t.Fatalf("assignment %d (%s) starts at %d before cursor %d", a.Step, a.QueryID, a.Start, prevCursor)
		}
		if a.Cursor != a.Start+a.PredSlots {
			t.Fatalf("assignment %d cursor = %d, want %d", a.Step, a.Cursor, a.Start+a.PredSlots)
		}
		if schedule[a.QueryID] != a.Start {
			t.Fatalf("schedule[%s] = %d, observer saw %d", a.QueryID, schedule[a.QueryID], a.Start)
		}
		prevCursor = a.Cursor
	}
}

func TestGreedyObserverDoesNotChangeSchedule(t *testing.T) {
	ci := []float64{30, 10, 25, 5, 40, 2, 60, 8, 8, 9}
	sig := testSignal(t, ci, 3600)
	w := testWorkload(t, []workload.Query{
		{ID: "a", PredSlots: 2, ActualSlots: 3},
		{ID: "b", PredSlots: 1, ActualSlots: 1},
		{ID: "c", PredSlots: 3, ActualSlots: 2},
	}, false)

	plain, _ := NewGreedyDefer(GreedyConfig{SearchHours: 5, CandidateStepSlots: 1})
	observed := plain.WithObserver(MultiObserver{&Recorder{}, nil})

	first, _ := plain.BuildSchedule(w, sig)
	second, _ := observed.BuildSchedule(w, sig)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("observer changed schedule: %v vs %v", first, second)
	}
}

func TestGreedyPastHorizonStartsAtCursor(t *testing.T) {
	sig := testSignal(t, []float64{1, 2, 3}, 3600)
	w := testWorkload(t, []workload.Query{
		{ID: "a", PredSlots: 2, ActualSlots: 2},
		{ID: "b", PredSlots: 2, ActualSlots: 2},
		{ID: "c", PredSlots: 2, ActualSlots: 2},
	}, false)

	policy, _ := NewGreedyDefer(GreedyConfig{SearchHours: 24, CandidateStepSlots: 1})
	got, err := policy.BuildSchedule(w, sig)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("schedule has %d entries, want 3", len(got))
	}
	// Every window past the horizon costs 0, so once the cursor reaches slot 3
	// the remaining query is placed on the cursor itself.
	entries := got.Entries()
	last := entries[len(entries)-1]
	if last.Start < 3 {
		t.Fatalf("last entry %v should start at or past the horizon", last)
	}
}

func TestNewGreedyDeferValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  GreedyConfig
	}{
		{"zero step", GreedyConfig{SearchHours: 1, CandidateStepSlots: 0}},
		{"negative step", GreedyConfig{SearchHours: 1, CandidateStepSlots: -3}},
		{"negative hours", GreedyConfig{SearchHours: -1, CandidateStepSlots: 1}},
		{"negative power", GreedyConfig{SearchHours: 1, CandidateStepSlots: 1, PowerKW: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGreedyDefer(tt.cfg); !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestSearchWindowSlots(t *testing.T) {
	policy, _ := NewGreedyDefer(GreedyConfig{SearchHours: 12, CandidateStepSlots: 1})
	if got := policy.SearchWindowSlots(testSignal(t, make([]float64, 50000), 1)); got != 43200 {
		t.Fatalf("1s slots: window = %d, want 43200", got)
	}
	if got := policy.SearchWindowSlots(testSignal(t, make([]float64, 200), 7*60)); got != 103 {
		t.Fatalf("7m slots: window = %d, want 103", got)
	}
	if got := policy.SearchWindowSlots(testSignal(t, []float64{1, 1}, 1)); got != 2 {
		t.Fatalf("short signal: window = %d, want 2", got)
	}
}

func TestGreedyHugeSearchWindowStillDefers(t *testing.T) {
	policy, err := NewGreedyDefer(GreedyConfig{SearchHours: 1e300, CandidateStepSlots: 1})
	if err != nil {
		t.Fatalf("new greedy: %v", err)
	}
	if got := policy.SearchWindowSlots(testSignal(t, []float64{9, 9, 1}, 1)); got != 3 {
		t.Fatalf("window = %d, want 3", got)
	}
	w := testWorkload(t, []workload.Query{{ID: "q0", PredSlots: 1, ActualSlots: 1}}, true)
	got, err := policy.BuildSchedule(w, testSignal(t, []float64{9, 9, 1}, 1))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got["q0"] != 2 {
		t.Fatalf("schedule = %v, want q0 at 2", got)
	}
}
