/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// RunStatus enumerates the outcome of an experiment run.
type RunStatus string

const (
	RunCompleted  RunStatus = "completed"
	RunInfeasible RunStatus = "infeasible"
	RunFailed     RunStatus = "failed"
)

// Sweep groups the runs produced by one plan execution.
type Sweep struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	Name      string `gorm:"index"`
	PlanPath  string
	RunCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExperimentRun is one (location, scenario, model, scheduler) cell.
type ExperimentRun struct {
	ID      string `gorm:"type:varchar(36);primaryKey"`
	SweepID string `gorm:"type:varchar(36);index"`

	Location    string `gorm:"type:varchar(64);index"`
	Scenario    string `gorm:"type:varchar(64);index"`
	Model       string `gorm:"type:varchar(64);index"`
	Scheduler   string `gorm:"type:varchar(64);index"`
	Oracle      bool
	OrderPolicy string `gorm:"type:varchar(32)"`
	LocalSearch bool

	Queries      int
	HorizonSlots int
	SlotSec      float64
	PowerKW      float64
	SearchHours  float64
	AddVariance  float64

	Status            RunStatus `gorm:"type:varchar(16);index"`
	Error             string    `gorm:"type:text"`
	InfeasibleEndSlot int

	// Nil when undefined (no queries, zero makespan or an infeasible run).
	TotalCarbon     *float64
	CarbonPerQuery  *float64
	CarbonPerSecond *float64
	MakespanSlots   int
	BuildMillis     int64

	StartedAt  time.Time
	FinishedAt time.Time
	CreatedAt  time.Time
}

// ScheduleRow is one realized query placement of a run.
type ScheduleRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	RunID        string `gorm:"type:varchar(36);index"`
	Position     int
	QueryID      string `gorm:"type:varchar(64)"`
	PlannedStart int
	Start        int
	End          int
	BlockedUntil int
	Carbon       float64
}
