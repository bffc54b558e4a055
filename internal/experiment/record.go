/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package experiment

import (
	"errors"
	"time"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/models"
	"github.com/friendsincode/carbonshift/internal/realize"
	"github.com/friendsincode/carbonshift/internal/results"
)

// RunInfo carries the cell settings stored alongside a run.
type RunInfo struct {
	SweepID     string
	Cell        Cell
	OrderPolicy string
	SearchHours float64
	AddVariance float64
	Queries     int
	Signal      *carbon.Signal
	PowerKW     float64
	LocalSearch bool
	Oracle      bool
	StartedAt   time.Time
}

// NewRunRecord converts a run into its persisted form. res is nil when runErr
// is set.
func NewRunRecord(info RunInfo, res *Result, runErr error) (*models.ExperimentRun, []models.ScheduleRow, error) {
	run := &models.ExperimentRun{
		SweepID:      info.SweepID,
		Location:     info.Cell.Location,
		Scenario:     info.Cell.Scenario,
		Model:        info.Cell.Model,
		Scheduler:    info.Cell.Scheduler,
		Oracle:       info.Oracle,
		OrderPolicy:  info.OrderPolicy,
		LocalSearch:  info.LocalSearch,
		Queries:      info.Queries,
		HorizonSlots: info.Signal.NumSlots(),
		SlotSec:      info.Signal.SlotSeconds(),
		PowerKW:      info.PowerKW,
		SearchHours:  info.SearchHours,
		AddVariance:  info.AddVariance,
		StartedAt:    info.StartedAt,
		FinishedAt:   time.Now().UTC(),
	}

	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
		var infeasible *realize.InfeasibleError
		if errors.As(runErr, &infeasible) {
			run.Status = models.RunInfeasible
			run.InfeasibleEndSlot = infeasible.EndSlot
		}
		return run, nil, nil
	}

	summary := res.Summary()
	run.Status = models.RunCompleted
	run.Oracle = res.Oracle
	run.TotalCarbon = results.Float(summary.CarbonTotal)
	run.CarbonPerQuery = results.Float(summary.CarbonPerQuery)
	run.CarbonPerSecond = results.Float(summary.CarbonPerSecond)
	run.MakespanSlots = res.MakespanSlots
	run.BuildMillis = res.BuildDuration.Milliseconds()

	timeline, err := res.Timeline()
	if err != nil {
		return nil, nil, err
	}
	rows := make([]models.ScheduleRow, 0, len(timeline))
	for _, ex := range timeline {
		rows = append(rows, models.ScheduleRow{
			QueryID:      ex.QueryID,
			PlannedStart: ex.PlannedStart,
			Start:        ex.Start,
			End:          ex.End,
			BlockedUntil: ex.BlockedUntil,
			Carbon:       ex.Carbon,
		})
	}
	return run, rows, nil
}
