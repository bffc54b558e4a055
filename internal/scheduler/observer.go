/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

// Assignment describes one decision of the greedy search.
type Assignment struct {
	Step      int
	QueryID   string
	Start     int
	PredSlots int
	Cursor    int     // cursor after the assignment: Start + PredSlots
	Cost      float64 // predicted gCO2 of the chosen window
	Remaining int
}

// Observer receives progress from a running policy. Observers are purely
// informational; a nil observer and any observer yield the same schedule.
type Observer interface {
	OnStart(total int)
	OnAssign(a Assignment)
	OnFinish()
}

// MultiObserver fans progress out to several observers.
type MultiObserver []Observer

func (m MultiObserver) OnStart(total int) {
	for _, o := range m {
		if o != nil {
			o.OnStart(total)
		}
	}
}

func (m MultiObserver) OnAssign(a Assignment) {
	for _, o := range m {
		if o != nil {
			o.OnAssign(a)
		}
	}
}

func (m MultiObserver) OnFinish() {
	for _, o := range m {
		if o != nil {
			o.OnFinish()
		}
	}
}

// Recorder keeps every assignment in order. Useful for audits and tests.
type Recorder struct {
	Total       int
	Assignments []Assignment
	Finished    bool
}

func (r *Recorder) OnStart(total int) {
	r.Total = total
	r.Assignments = r.Assignments[:0]
	r.Finished = false
}

func (r *Recorder) OnAssign(a Assignment) {
	r.Assignments = append(r.Assignments, a)
}

func (r *Recorder) OnFinish() {
	r.Finished = true
}
