/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/friendsincode/carbonshift/internal/experiment"
	"github.com/friendsincode/carbonshift/internal/realize"
)

var recordHeader = []string{
	"location", "scenario", "model", "scheduler", "status", "queries",
	"carbon_total_gco2", "carbon_per_query_gco2", "carbon_per_second_gco2",
	"makespan_s", "overhead_vs_oracle",
}

func status(r Record) string {
	if r.Infeasible {
		return "infeasible"
	}
	return "ok"
}

// formatFloat renders undefined values as an empty cell.
func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return strconv.FormatFloat(100*v, 'f', 2, 64) + "%"
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// Render writes records as an aligned text table.
func Render(w io.Writer, records []Record) {
	table := newTable(w, []string{
		"Location", "Scenario", "Model", "Scheduler", "Queries",
		"Carbon (gCO2)", "Per query", "Makespan (s)", "vs Oracle",
	})
	for _, r := range records {
		carbonCell := formatFloat(r.CarbonTotal, 2)
		if r.Infeasible {
			carbonCell = "infeasible"
		}
		table.Append([]string{
			r.Location,
			r.Scenario,
			r.Model,
			r.Scheduler,
			strconv.Itoa(r.NumQueries),
			carbonCell,
			formatFloat(r.CarbonPerQuery, 4),
			formatFloat(r.MakespanSeconds, 0),
			formatPercent(r.OverheadVsOracle),
		})
	}
	table.Render()
}

// RenderMeanOverhead writes the per-scheduler mean overhead.
func RenderMeanOverhead(w io.Writer, records []Record) {
	means := MeanOverhead(records)
	table := newTable(w, []string{"Scheduler", "Mean overhead vs Oracle"})
	for _, name := range Schedulers(records) {
		v, ok := means[name]
		if !ok {
			v = math.NaN()
		}
		table.Append([]string{name, formatPercent(v)})
	}
	table.Render()
}

// RenderSchedule writes planned placements as a text table.
func RenderSchedule(w io.Writer, rows []experiment.Row) {
	table := newTable(w, []string{"Query", "Start slot", "Start (s)", "Predicted", "Actual"})
	for _, r := range rows {
		table.Append([]string{
			r.QueryID,
			strconv.Itoa(r.StartSlot),
			formatFloat(r.StartSec, 0),
			strconv.Itoa(r.PredSlots),
			strconv.Itoa(r.ActualSlots),
		})
	}
	table.Render()
}

// WriteCSV writes records with a header row. Undefined values are empty.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.Location,
			r.Scenario,
			r.Model,
			r.Scheduler,
			status(r),
			strconv.Itoa(r.NumQueries),
			formatFloat(r.CarbonTotal, 6),
			formatFloat(r.CarbonPerQuery, 6),
			formatFloat(r.CarbonPerSecond, 9),
			formatFloat(r.MakespanSeconds, 1),
			formatFloat(r.OverheadVsOracle, 6),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteScheduleCSV writes id,start_slot,start_s,pred_slots,actual_slots rows.
func WriteScheduleCSV(w io.Writer, rows []experiment.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "start_slot", "start_s", "pred_slots", "actual_slots"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.QueryID,
			strconv.Itoa(r.StartSlot),
			formatFloat(r.StartSec, 1),
			strconv.Itoa(r.PredSlots),
			strconv.Itoa(r.ActualSlots),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTimelineCSV writes realized placements with their charged carbon.
func WriteTimelineCSV(w io.Writer, timeline []realize.Execution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "planned_start", "start", "end", "blocked_until", "carbon_gco2"}); err != nil {
		return err
	}
	for _, ex := range timeline {
		if err := cw.Write([]string{
			ex.QueryID,
			strconv.Itoa(ex.PlannedStart),
			strconv.Itoa(ex.Start),
			strconv.Itoa(ex.End),
			strconv.Itoa(ex.BlockedUntil),
			formatFloat(ex.Carbon, 6),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
