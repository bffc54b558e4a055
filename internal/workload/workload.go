/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package workload holds the queries submitted to the single execution resource.
package workload

import (
	"fmt"
	"math"
)

// Query is an immutable job record. Durations are whole slots, each at least 1.
type Query struct {
	ID          string
	PredSlots   int
	ActualSlots int
}

// AbsError returns |ActualSlots - PredSlots|.
func (q Query) AbsError() int {
	if q.ActualSlots > q.PredSlots {
		return q.ActualSlots - q.PredSlots
	}
	return q.PredSlots - q.ActualSlots
}

// Runtime is a source row: predicted and observed execution time in seconds.
type Runtime struct {
	ID           string
	PredictedSec float64
	ActualSec    float64
}

// BuildOptions controls conversion of runtimes to slot counts.
type BuildOptions struct {
	SlotSec  float64
	Variance float64 // multiplier on predicted slots; 0 means 1
	Limit    int     // keep the first Limit queries; 0 keeps all
	Oracle   bool
}

// Workload is an ordered collection of queries. It is never mutated after
// construction; derivations return new values.
type Workload struct {
	queries []Query
	index   map[string]int
	oracle  bool
}

// New builds a workload from queries. IDs must be unique and durations >= 1.
// An oracle workload must have equal predicted and actual durations.
func New(queries []Query, oracle bool) (*Workload, error) {
	w := &Workload{
		queries: make([]Query, len(queries)),
		index:   make(map[string]int, len(queries)),
		oracle:  oracle,
	}
	for i, q := range queries {
		if q.ID == "" {
			return nil, fmt.Errorf("query at position %d has no id", i)
		}
		if q.PredSlots < 1 || q.ActualSlots < 1 {
			return nil, fmt.Errorf("query %s: durations must be >= 1 slot (pred=%d actual=%d)", q.ID, q.PredSlots, q.ActualSlots)
		}
		if oracle && q.PredSlots != q.ActualSlots {
			return nil, fmt.Errorf("query %s: oracle workload has pred=%d actual=%d", q.ID, q.PredSlots, q.ActualSlots)
		}
		if _, dup := w.index[q.ID]; dup {
			return nil, fmt.Errorf("duplicate query id %q", q.ID)
		}
		w.queries[i] = q
		w.index[q.ID] = i
	}
	return w, nil
}

// RuntimeToSlots converts seconds to whole slots: the ceiling slot count is scaled
// by variance and truncated, then floored at one slot.
func RuntimeToSlots(seconds, slotSec, variance float64) int {
	slots := int(math.Ceil(seconds/slotSec) * variance)
	if slots < 1 {
		return 1
	}
	return slots
}

// FromRuntimes converts source rows into a workload. Rows without an ID are
// named q0, q1, ... after their source position. With opts.Oracle the
// predictions are replaced by the actual durations.
func FromRuntimes(rows []Runtime, opts BuildOptions) (*Workload, error) {
	if !(opts.SlotSec > 0) {
		return nil, fmt.Errorf("slot length must be positive, got %v", opts.SlotSec)
	}
	variance := opts.Variance
	if variance == 0 {
		variance = 1
	}
	if variance < 0 || math.IsNaN(variance) {
		return nil, fmt.Errorf("variance must be positive, got %v", opts.Variance)
	}

	queries := make([]Query, 0, len(rows))
	for i, row := range rows {
		id := row.ID
		if id == "" {
			id = fmt.Sprintf("q%d", i)
		}
		queries = append(queries, Query{
			ID:          id,
			PredSlots:   RuntimeToSlots(row.PredictedSec, opts.SlotSec, variance),
			ActualSlots: RuntimeToSlots(row.ActualSec, opts.SlotSec, 1),
		})
	}
	if opts.Limit > 0 && len(queries) > opts.Limit {
		queries = queries[:opts.Limit]
	}
	w, err := New(queries, false)
	if err != nil {
		return nil, err
	}
	if opts.Oracle {
		return w.OracleView(), nil
	}
	return w, nil
}

// Queries returns a copy of the queries in arrival order.
func (w *Workload) Queries() []Query {
	out := make([]Query, len(w.queries))
	copy(out, w.queries)
	return out
}

// Len returns the number of queries.
func (w *Workload) Len() int {
	return len(w.queries)
}

// IsOracle reports whether predicted and actual durations coincide by construction.
func (w *Workload) IsOracle() bool {
	return w.oracle
}

// Lookup returns the query with the given ID.
func (w *Workload) Lookup(id string) (Query, bool) {
	i, ok := w.index[id]
	if !ok {
		return Query{}, false
	}
	return w.queries[i], true
}

// OracleView returns a workload whose predictions equal the actual durations.
func (w *Workload) OracleView() *Workload {
	out := &Workload{
		queries: make([]Query, len(w.queries)),
		index:   make(map[string]int, len(w.queries)),
		oracle:  true,
	}
	for i, q := range w.queries {
		out.queries[i] = Query{ID: q.ID, PredSlots: q.ActualSlots, ActualSlots: q.ActualSlots}
		out.index[q.ID] = i
	}
	return out
}

// TotalSlots returns the summed predicted and actual slots.
func (w *Workload) TotalSlots() (pred, actual int) {
	for _, q := range w.queries {
		pred += q.PredSlots
		actual += q.ActualSlots
	}
	return pred, actual
}
