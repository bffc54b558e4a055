/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// GreedyConfig configures the greedy carbon-minimising policy.
type GreedyConfig struct {
	Name               string
	SearchHours        float64 // look-ahead from the cursor
	CandidateStepSlots int     // sampling stride over candidate starts, >= 1
	PowerKW            float64 // 0 means carbon.DefaultPowerKW
	Observer           Observer
}

// GreedyDefer picks, at every step, the remaining query and start slot with the
// lowest predicted carbon, deferring at most SearchHours past the cursor. The
// cursor advances by the predicted duration of the chosen query.
type GreedyDefer struct {
	name        string
	searchHours float64
	step        int
	powerKW     float64
	observer    Observer
}

// NewGreedyDefer validates cfg and constructs the policy.
func NewGreedyDefer(cfg GreedyConfig) (*GreedyDefer, error) {
	if cfg.CandidateStepSlots < 1 {
		return nil, fmt.Errorf("%w: candidate step must be >= 1, got %d", ErrInvalidConfiguration, cfg.CandidateStepSlots)
	}
	if cfg.SearchHours < 0 || math.IsNaN(cfg.SearchHours) || math.IsInf(cfg.SearchHours, 0) {
		return nil, fmt.Errorf("%w: search hours must be a finite non-negative number, got %v", ErrInvalidConfiguration, cfg.SearchHours)
	}
	power := cfg.PowerKW
	if power == 0 {
		power = carbon.DefaultPowerKW
	}
	if power < 0 {
		return nil, fmt.Errorf("%w: power must be positive, got %v", ErrInvalidConfiguration, cfg.PowerKW)
	}
	name := cfg.Name
	if name == "" {
		name = "LowCarbonWhoWhen"
	}
	return &GreedyDefer{
		name:        name,
		searchHours: cfg.SearchHours,
		step:        cfg.CandidateStepSlots,
		powerKW:     power,
		observer:    cfg.Observer,
	}, nil
}

// Name returns the display name.
func (g *GreedyDefer) Name() string {
	return g.name
}

// WithObserver returns a copy of the policy reporting progress to obs.
func (g *GreedyDefer) WithObserver(obs Observer) *GreedyDefer {
	clone := *g
	clone.observer = obs
	return &clone
}

// SearchWindowSlots converts the look-ahead into slots of sig, rounding up.
// The window never exceeds the signal length.
func (g *GreedyDefer) SearchWindowSlots(sig *carbon.Signal) int {
	slots := math.Ceil(g.searchHours * 3600.0 / sig.SlotSeconds())
	if n := float64(sig.NumSlots()); slots > n {
		return sig.NumSlots()
	}
	return int(slots)
}

// BuildSchedule runs the greedy search. Cost is O(Q^2 * W/step).
func (g *GreedyDefer) BuildSchedule(w *workload.Workload, sig *carbon.Signal) (Schedule, error) {
	queries := w.Queries()
	remaining := make([]workload.Query, len(queries))
	copy(remaining, queries)
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].ID < remaining[j].ID
	})

	window := g.SearchWindowSlots(sig)
	horizon := sig.NumSlots()
	schedule := make(Schedule, len(remaining))
	cursor := 0

	obs := g.observer
	if obs != nil {
		obs.OnStart(len(remaining))
		defer obs.OnFinish()
	}

	for step := 0; len(remaining) > 0; step++ {
		bestIdx := -1
		bestStart := cursor
		bestCost := math.Inf(1)

		for i, q := range remaining {
			start, cost := g.bestStart(sig, q.PredSlots, cursor, window, horizon)
			// remaining is sorted by ID, so on equal cost the earlier index has the smaller ID.
			if cost < bestCost || bestIdx < 0 {
				bestIdx, bestStart, bestCost = i, start, cost
			}
		}

		chosen := remaining[bestIdx]
		schedule[chosen.ID] = bestStart
		cursor = bestStart + chosen.PredSlots
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		if obs != nil {
			obs.OnAssign(Assignment{
				Step:      step,
				QueryID:   chosen.ID,
				Start:     bestStart,
				PredSlots: chosen.PredSlots,
				Cursor:    cursor,
				Cost:      bestCost,
				Remaining: len(remaining),
			})
		}
	}
	return schedule, nil
}

// bestStart scans candidate starts from cursor up to the last start that keeps the
// predicted window inside the horizon, bounded by the search window. The earliest
// of equally cheap candidates wins.
func (g *GreedyDefer) bestStart(sig *carbon.Signal, pred, cursor, window, horizon int) (int, float64) {
	last := cursor
	if cursor < horizon {
		last = horizon - pred
		if last < cursor {
			last = cursor
		}
	}
	searchEnd := cursor + window
	if last < searchEnd {
		searchEnd = last
	}

	bestStart := cursor
	bestCost := math.Inf(1)
	for s := cursor; s <= searchEnd; s += g.step {
		cost := sig.WindowCarbon(s, pred, g.powerKW)
		if cost < bestCost {
			bestStart, bestCost = s, cost
		}
	}
	return bestStart, bestCost
}
