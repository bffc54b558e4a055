/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler contains the placement policies that turn a workload and a
// carbon signal into a schedule for the single execution resource.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// ErrInvalidConfiguration is returned when a policy is configured with values it cannot use.
var ErrInvalidConfiguration = errors.New("invalid scheduler configuration")

// Schedule maps a query ID to its planned start slot. Entries may overlap; the
// realizer resolves conflicts with blocking semantics.
type Schedule map[string]int

// Entry is one planned placement.
type Entry struct {
	QueryID string
	Start   int
}

// Entries returns the schedule ordered by start slot, ties broken by query ID.
func (s Schedule) Entries() []Entry {
	entries := make([]Entry, 0, len(s))
	for id, start := range s {
		entries = append(entries, Entry{QueryID: id, Start: start})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		return entries[i].QueryID < entries[j].QueryID
	})
	return entries
}

// Policy builds a schedule for one workload and signal. Implementations keep no
// state between invocations beyond their configuration.
type Policy interface {
	Name() string
	BuildSchedule(w *workload.Workload, sig *carbon.Signal) (Schedule, error)
}

// Kind selects a policy implementation.
type Kind string

const (
	KindArrival Kind = "fifo"
	KindGreedy  Kind = "greedy"
)

// ParseKind accepts the policy kind names used in plan files and flags.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo", "arrival", "":
		return KindArrival, nil
	case "greedy", "greedy_defer", "who_when":
		return KindGreedy, nil
	default:
		return "", fmt.Errorf("%w: unknown policy kind %q", ErrInvalidConfiguration, name)
	}
}

// Config is the union of policy settings, as read from configuration.
type Config struct {
	Kind               Kind
	Name               string
	Order              workload.OrderPolicy
	SearchHours        float64
	CandidateStepSlots int
	PowerKW            float64
	Observer           Observer
}

// New constructs the policy described by cfg.
func New(cfg Config) (Policy, error) {
	kind, err := ParseKind(string(cfg.Kind))
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindGreedy:
		return NewGreedyDefer(GreedyConfig{
			Name:               cfg.Name,
			SearchHours:        cfg.SearchHours,
			CandidateStepSlots: cfg.CandidateStepSlots,
			PowerKW:            cfg.PowerKW,
			Observer:           cfg.Observer,
		})
	default:
		return NewArrival(ArrivalConfig{Name: cfg.Name, Order: cfg.Order})
	}
}
