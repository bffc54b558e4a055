/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"fmt"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// ArrivalConfig configures the FIFO policy.
type ArrivalConfig struct {
	Name  string
	Order workload.OrderPolicy
}

// Arrival places queries back to back in a fixed order, advancing by actual duration.
type Arrival struct {
	name  string
	order workload.OrderPolicy
}

// NewArrival constructs a FIFO policy. The order defaults to arrival.
func NewArrival(cfg ArrivalConfig) (*Arrival, error) {
	order, err := workload.ParseOrderPolicy(string(cfg.Order))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	name := cfg.Name
	if name == "" {
		name = "FIFO"
	}
	return &Arrival{name: name, order: order}, nil
}

// Name returns the display name.
func (a *Arrival) Name() string {
	return a.name
}

// Order returns the configured ordering.
func (a *Arrival) Order() workload.OrderPolicy {
	return a.order
}

// BuildSchedule ignores the signal: placement depends only on the ordering.
func (a *Arrival) BuildSchedule(w *workload.Workload, _ *carbon.Signal) (Schedule, error) {
	queries, err := w.Ordered(a.order)
	if err != nil {
		return nil, err
	}

	schedule := make(Schedule, len(queries))
	cursor := 0
	for _, q := range queries {
		schedule[q.ID] = cursor
		cursor += q.ActualSlots
	}
	return schedule, nil
}
