/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package report

import (
	"io"
	"strconv"
	"time"

	"github.com/friendsincode/carbonshift/internal/models"
	"github.com/friendsincode/carbonshift/internal/results"
)

// RenderRuns writes stored runs as a text table.
func RenderRuns(w io.Writer, runs []models.ExperimentRun) {
	table := newTable(w, []string{
		"ID", "Location", "Scenario", "Model", "Scheduler", "Status", "Queries", "Carbon (gCO2)", "Started",
	})
	for _, run := range runs {
		table.Append([]string{
			run.ID,
			run.Location,
			run.Scenario,
			run.Model,
			run.Scheduler,
			string(run.Status),
			strconv.Itoa(run.Queries),
			formatFloat(results.Value(run.TotalCarbon), 2),
			run.StartedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

// RenderSweeps writes stored sweeps as a text table.
func RenderSweeps(w io.Writer, sweeps []models.Sweep) {
	table := newTable(w, []string{"ID", "Name", "Plan", "Runs", "Created"})
	for _, s := range sweeps {
		table.Append([]string{
			s.ID,
			s.Name,
			s.PlanPath,
			strconv.Itoa(s.RunCount),
			s.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}

// RenderRun writes the settings and metrics of one stored run followed by its
// realized placements.
func RenderRun(w io.Writer, run *models.ExperimentRun, rows []models.ScheduleRow) {
	details := newTable(w, []string{"Field", "Value"})
	details.AppendBulk([][]string{
		{"ID", run.ID},
		{"Sweep", run.SweepID},
		{"Location", run.Location},
		{"Scenario", run.Scenario},
		{"Model", run.Model},
		{"Scheduler", run.Scheduler},
		{"Order", run.OrderPolicy},
		{"Oracle", strconv.FormatBool(run.Oracle)},
		{"Status", string(run.Status)},
		{"Queries", strconv.Itoa(run.Queries)},
		{"Horizon (slots)", strconv.Itoa(run.HorizonSlots)},
		{"Slot (s)", formatFloat(run.SlotSec, 0)},
		{"Power (kW)", formatFloat(run.PowerKW, 3)},
		{"Carbon (gCO2)", formatFloat(results.Value(run.TotalCarbon), 4)},
		{"Carbon per query", formatFloat(results.Value(run.CarbonPerQuery), 4)},
		{"Makespan (slots)", strconv.Itoa(run.MakespanSlots)},
	})
	if run.Error != "" {
		details.Append([]string{"Error", run.Error})
	}
	details.Render()

	if len(rows) == 0 {
		return
	}
	io.WriteString(w, "\n")
	table := newTable(w, []string{"Query", "Planned", "Start", "End", "Blocked until", "Carbon (gCO2)"})
	for _, r := range rows {
		table.Append([]string{
			r.QueryID,
			strconv.Itoa(r.PlannedStart),
			strconv.Itoa(r.Start),
			strconv.Itoa(r.End),
			strconv.Itoa(r.BlockedUntil),
			formatFloat(r.Carbon, 4),
		})
	}
	table.Render()
}
