/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package report tabulates experiment results and compares them with the
// oracle run of the same location, scenario and scheduler.
package report

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/friendsincode/carbonshift/internal/config"
	"github.com/friendsincode/carbonshift/internal/experiment"
)

// Record is one row of a results table.
type Record struct {
	Location  string
	Scenario  string
	Model     string
	Scheduler string

	Infeasible      bool
	NumQueries      int
	CarbonTotal     float64 // gCO2; NaN when infeasible
	CarbonPerQuery  float64
	CarbonPerSecond float64
	MakespanSeconds float64
	SlotSeconds     float64
	PowerKW         float64

	// OverheadVsOracle is (C - C_oracle) / C_oracle; NaN until computed or
	// when the group has no oracle row.
	OverheadVsOracle float64
}

func newRecord(location, scenario string, res *experiment.Result) Record {
	s := res.Summary()
	return Record{
		Location:         location,
		Scenario:         scenario,
		Model:            s.Label,
		Scheduler:        s.Scheduler,
		NumQueries:       s.NumQueries,
		CarbonTotal:      s.CarbonTotal,
		CarbonPerQuery:   s.CarbonPerQuery,
		CarbonPerSecond:  s.CarbonPerSecond,
		MakespanSeconds:  s.MakespanSeconds,
		SlotSeconds:      s.SlotSeconds,
		PowerKW:          s.PowerKW,
		OverheadVsOracle: math.NaN(),
	}
}

// Collect tags results with their location and scenario.
func Collect(location, scenario string, results []*experiment.Result) []Record {
	records := make([]Record, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		records = append(records, newRecord(location, scenario, res))
	}
	return records
}

// FromOutcomes converts sweep outcomes in order. Infeasible cells become
// records with undefined metrics.
func FromOutcomes(outcomes []experiment.Outcome) []Record {
	records := make([]Record, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Result != nil {
			records = append(records, newRecord(o.Cell.Location, o.Cell.Scenario, o.Result))
			continue
		}
		nan := math.NaN()
		records = append(records, Record{
			Location:         o.Cell.Location,
			Scenario:         o.Cell.Scenario,
			Model:            o.Cell.Model,
			Scheduler:        o.Cell.Scheduler,
			Infeasible:       true,
			CarbonTotal:      nan,
			CarbonPerQuery:   nan,
			CarbonPerSecond:  nan,
			MakespanSeconds:  nan,
			OverheadVsOracle: nan,
		})
	}
	return records
}

type groupKey struct {
	location, scenario, scheduler string
}

// AddOverheadVsOracle fills OverheadVsOracle for every record. Records are
// grouped by location, scenario and scheduler; the first record of a group
// whose model is config.OracleModel is the baseline.
func AddOverheadVsOracle(records []Record) {
	baseline := make(map[groupKey]float64)
	for _, r := range records {
		key := groupKey{r.Location, r.Scenario, r.Scheduler}
		if _, seen := baseline[key]; seen || r.Model != config.OracleModel {
			continue
		}
		baseline[key] = r.CarbonTotal
	}
	for i := range records {
		r := &records[i]
		oracle, ok := baseline[groupKey{r.Location, r.Scenario, r.Scheduler}]
		if !ok {
			r.OverheadVsOracle = math.NaN()
			continue
		}
		r.OverheadVsOracle = (r.CarbonTotal - oracle) / oracle
	}
}

// MeanOverhead averages the defined overheads of non-oracle records per scheduler.
func MeanOverhead(records []Record) map[string]float64 {
	values := make(map[string][]float64)
	for _, r := range records {
		if r.Model == config.OracleModel || math.IsNaN(r.OverheadVsOracle) || math.IsInf(r.OverheadVsOracle, 0) {
			continue
		}
		values[r.Scheduler] = append(values[r.Scheduler], r.OverheadVsOracle)
	}
	out := make(map[string]float64, len(values))
	for name, xs := range values {
		out[name] = stat.Mean(xs, nil)
	}
	return out
}

// Schedulers returns the scheduler names of records, sorted.
func Schedulers(records []Record) []string {
	seen := map[string]bool{}
	var names []string
	for _, r := range records {
		if !seen[r.Scheduler] {
			seen[r.Scheduler] = true
			names = append(names, r.Scheduler)
		}
	}
	sort.Strings(names)
	return names
}
