/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package realize replays a schedule on a single execution resource. Queries run
// strictly in planned-start order; a query starts at the later of its planned
// slot and the moment the resource frees up.
package realize

import (
	"errors"
	"fmt"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/workload"
)

var (
	// ErrInfeasibleSchedule marks a schedule whose committed time overruns the horizon.
	ErrInfeasibleSchedule = errors.New("schedule exceeds carbon signal horizon")
	// ErrUnknownQuery marks a schedule entry that names no query of the workload.
	ErrUnknownQuery = errors.New("schedule references unknown query")
)

// InfeasibleError carries the details of a failed feasibility check.
type InfeasibleError struct {
	Name    string
	EndSlot int
	Horizon int
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("%s exceeds CI window: ends at slot %d, but CI length is %d", e.Name, e.EndSlot, e.Horizon)
}

func (e *InfeasibleError) Unwrap() error {
	return ErrInfeasibleSchedule
}

// Blocking selects how long a query occupies the resource.
type Blocking int

const (
	// PlanBasis blocks for the predicted duration, or max(pred, actual) on oracle workloads.
	PlanBasis Blocking = iota
	// ActualBasis blocks for the actual duration.
	ActualBasis
	// PredictedBasis blocks for the predicted duration regardless of the oracle flag.
	PredictedBasis
	// ConservativeBasis blocks for max(pred, actual).
	ConservativeBasis
)

func (b Blocking) slots(q workload.Query, oracle bool) int {
	switch b {
	case ActualBasis:
		return q.ActualSlots
	case PredictedBasis:
		return q.PredSlots
	case ConservativeBasis:
		return max(q.PredSlots, q.ActualSlots)
	default:
		if oracle {
			return max(q.PredSlots, q.ActualSlots)
		}
		return q.PredSlots
	}
}

// Execution is the realized placement of one query.
type Execution struct {
	QueryID      string
	PlannedStart int
	Start        int
	End          int // Start + ActualSlots
	BlockedUntil int
	Carbon       float64 // gCO2 over the actual window
}

// walk replays schedule and calls visit for each query in execution order. It
// returns the final cursor.
func walk(w *workload.Workload, schedule scheduler.Schedule, blocking Blocking, visit func(q workload.Query, planned, start, blockedUntil int)) (int, error) {
	cursor := 0
	for _, entry := range schedule.Entries() {
		q, ok := w.Lookup(entry.QueryID)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownQuery, entry.QueryID)
		}
		if entry.Start > cursor {
			cursor = entry.Start
		}
		start := cursor
		cursor = start + blocking.slots(q, w.IsOracle())
		if visit != nil {
			visit(q, entry.Start, start, cursor)
		}
	}
	return cursor, nil
}

// CheckFeasible verifies that, blocking on the plan basis, the schedule finishes
// within horizon slots. A failure returns an *InfeasibleError.
func CheckFeasible(name string, w *workload.Workload, schedule scheduler.Schedule, horizon int) error {
	end, err := walk(w, schedule, PlanBasis, nil)
	if err != nil {
		return err
	}
	if end > horizon {
		if name == "" {
			name = "schedule"
		}
		return &InfeasibleError{Name: name, EndSlot: end, Horizon: horizon}
	}
	return nil
}

// Options controls realized-carbon accounting.
type Options struct {
	PowerKW float64 // 0 means carbon.DefaultPowerKW
	// LocalSearch blocks on predicted rather than actual duration.
	LocalSearch bool
}

func (o Options) power() float64 {
	if o.PowerKW == 0 {
		return carbon.DefaultPowerKW
	}
	return o.PowerKW
}

func (o Options) blocking() Blocking {
	if o.LocalSearch {
		return PredictedBasis
	}
	return ActualBasis
}

// Carbon returns the grams of CO2 emitted when the schedule actually runs.
// Carbon is charged over each query's actual duration.
func Carbon(w *workload.Workload, schedule scheduler.Schedule, sig *carbon.Signal, opts Options) (float64, error) {
	total := 0.0
	power := opts.power()
	_, err := walk(w, schedule, opts.blocking(), func(q workload.Query, _, start, _ int) {
		total += sig.WindowCarbon(start, q.ActualSlots, power)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Timeline returns the per-query realized placements under the same accounting as Carbon.
func Timeline(w *workload.Workload, schedule scheduler.Schedule, sig *carbon.Signal, opts Options) ([]Execution, error) {
	power := opts.power()
	out := make([]Execution, 0, len(schedule))
	_, err := walk(w, schedule, opts.blocking(), func(q workload.Query, planned, start, blockedUntil int) {
		out = append(out, Execution{
			QueryID:      q.ID,
			PlannedStart: planned,
			Start:        start,
			End:          start + q.ActualSlots,
			BlockedUntil: blockedUntil,
			Carbon:       sig.WindowCarbon(start, q.ActualSlots, power),
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Makespan returns the slot at which the resource frees up when every query
// blocks for max(pred, actual).
func Makespan(w *workload.Workload, schedule scheduler.Schedule) (int, error) {
	return walk(w, schedule, ConservativeBasis, nil)
}
