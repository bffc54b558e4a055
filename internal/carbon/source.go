/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package carbon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column headers of the hourly/5-minute carbon-intensity exports.
const (
	ColumnTimestamp = "Datetime (UTC)"
	ColumnDirect    = "Carbon intensity gCO₂eq/kWh (direct)"
	ColumnLifecycle = "Carbon intensity gCO₂eq/kWh (Life cycle)"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-1-2 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Sample is one row of a carbon-intensity source.
type Sample struct {
	Timestamp time.Time
	Direct    float64 // gCO2eq/kWh
	Lifecycle float64 // gCO2eq/kWh
}

// SourceOptions controls how samples become a Signal.
type SourceOptions struct {
	UseLifecycle  bool
	Start         *time.Time // inclusive
	End           *time.Time // inclusive
	UpsampleToSec float64    // 0 keeps the native slot length
}

// Window is the time range a signal was built from.
type Window struct {
	First         time.Time
	Last          time.Time
	NativeSlotSec float64
}

// ParseTimestamp accepts the timestamp formats found in intensity exports.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// ReadSamples parses a carbon-intensity CSV export. Extra columns are ignored.
func ReadSamples(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty carbon source", ErrConstruction)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	tsIdx, directIdx, lifecycleIdx := -1, -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch {
		case name == ColumnTimestamp:
			tsIdx = i
		case name == ColumnDirect:
			directIdx = i
		case name == ColumnLifecycle:
			lifecycleIdx = i
		case strings.HasPrefix(strings.ToLower(name), "carbon intensity") && strings.Contains(strings.ToLower(name), "(direct)"):
			directIdx = i
		case strings.HasPrefix(strings.ToLower(name), "carbon intensity") && strings.Contains(strings.ToLower(name), "(life cycle)"):
			lifecycleIdx = i
		}
	}
	if tsIdx < 0 || directIdx < 0 || lifecycleIdx < 0 {
		return nil, fmt.Errorf("%w: missing required columns (timestamp=%d direct=%d lifecycle=%d)",
			ErrConstruction, tsIdx, directIdx, lifecycleIdx)
	}

	var samples []Sample
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		ts, err := ParseTimestamp(field(record, tsIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		direct, err := parseIntensity(field(record, directIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d direct: %w", line, err)
		}
		lifecycle, err := parseIntensity(field(record, lifecycleIdx))
		if err != nil {
			return nil, fmt.Errorf("line %d lifecycle: %w", line, err)
		}
		samples = append(samples, Sample{Timestamp: ts, Direct: direct, Lifecycle: lifecycle})
	}
	return samples, nil
}

// FromSamples filters, orders and resamples source samples into a Signal.
func FromSamples(samples []Sample, opts SourceOptions) (*Signal, Window, error) {
	kept := make([]Sample, 0, len(samples))
	for _, sample := range samples {
		if opts.Start != nil && sample.Timestamp.Before(*opts.Start) {
			continue
		}
		if opts.End != nil && sample.Timestamp.After(*opts.End) {
			continue
		}
		kept = append(kept, sample)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	if len(kept) < 2 {
		return nil, Window{}, fmt.Errorf("%w: need at least 2 samples after filtering to infer slot length, got %d",
			ErrConstruction, len(kept))
	}

	nativeSec := kept[1].Timestamp.Sub(kept[0].Timestamp).Seconds()
	if nativeSec <= 0 {
		return nil, Window{}, fmt.Errorf("%w: duplicate leading timestamps %s", ErrConstruction, kept[0].Timestamp)
	}

	ci := make([]float64, len(kept))
	for i, sample := range kept {
		if opts.UseLifecycle {
			ci[i] = sample.Lifecycle
		} else {
			ci[i] = sample.Direct
		}
	}

	slotSec := nativeSec
	if opts.UpsampleToSec > 0 {
		upsampled, err := Upsample(ci, nativeSec, opts.UpsampleToSec)
		if err != nil {
			return nil, Window{}, err
		}
		ci = upsampled
		slotSec = opts.UpsampleToSec
	}

	sig, err := New(ci, slotSec)
	if err != nil {
		return nil, Window{}, err
	}
	return sig, Window{
		First:         kept[0].Timestamp,
		Last:          kept[len(kept)-1].Timestamp,
		NativeSlotSec: nativeSec,
	}, nil
}

func field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parseIntensity(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty intensity")
	}
	return strconv.ParseFloat(value, 64)
}
