/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package carbon

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func mustSignal(t *testing.T, ci []float64, slotSec float64) *Signal {
	t.Helper()
	sig, err := New(ci, slotSec)
	if err != nil {
		t.Fatalf("new signal: %v", err)
	}
	return sig
}

func TestWindowCarbonScenario(t *testing.T) {
	sig := mustSignal(t, []float64{10, 20, 10, 40}, 3600)

	if got := sig.WindowCarbon(0, 2, 0.5); got != 15.0 {
		t.Fatalf("WindowCarbon(0, 2, 0.5) = %v, want 15", got)
	}
	if got := sig.WindowCarbon(0, 1, 0.5); got != 5.0 {
		t.Fatalf("WindowCarbon(0, 1, 0.5) = %v, want 5", got)
	}
}

func TestWindowCarbonMatchesDirectSum(t *testing.T) {
	ci := []float64{12.5, 0, 300, 41, 7.25, 99, 120, 3}
	sig := mustSignal(t, ci, 900)
	n := len(ci)

	for start := 0; start <= n+2; start++ {
		for duration := 0; duration <= n+3; duration++ {
			end := start + duration
			if end > n {
				end = n
			}
			direct := 0.0
			for i := start; i < end; i++ {
				direct += ci[i]
			}
			want := direct * 0.15 * 0.25
			got := sig.WindowCarbon(start, duration, 0.15)
			if math.Abs(got-want) > 1e-9 {
				t.Fatalf("WindowCarbon(%d, %d) = %v, want %v", start, duration, got, want)
			}
		}
	}
}

func TestWindowCarbonOutOfRange(t *testing.T) {
	sig := mustSignal(t, []float64{10, 20, 10, 40}, 3600)

	tests := []struct {
		name     string
		start    int
		duration int
	}{
		{"at horizon", 4, 5},
		{"past horizon", 10, 1},
		{"zero duration", 1, 0},
		{"negative duration", 2, -3},
		{"negative start fully before horizon", -5, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sig.WindowCarbon(tt.start, tt.duration, 0.5); got != 0 {
				t.Errorf("WindowCarbon(%d, %d) = %v, want exactly 0", tt.start, tt.duration, got)
			}
		})
	}
}

func TestWindowCarbonClampsToHorizon(t *testing.T) {
	sig := mustSignal(t, []float64{10, 20, 10, 40}, 3600)

	if got, want := sig.WindowCarbon(2, 10, 1), 50.0; got != want {
		t.Fatalf("clamped window = %v, want %v", got, want)
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		ci      []float64
		slotSec float64
	}{
		{"empty", nil, 60},
		{"zero slot", []float64{1, 2}, 0},
		{"negative intensity", []float64{1, -2}, 60},
		{"nan intensity", []float64{math.NaN(), 2}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.ci, tt.slotSec); !errors.Is(err, ErrConstruction) {
				t.Fatalf("New() error = %v, want ErrConstruction", err)
			}
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	ci := []float64{1, 2, 3}
	sig := mustSignal(t, ci, 60)
	ci[0] = 100

	if sig.Intensity(0) != 1 {
		t.Fatalf("signal was mutated through caller slice: %v", sig.Intensity(0))
	}
	values := sig.Values()
	values[1] = 100
	if sig.Intensity(1) != 2 {
		t.Fatalf("signal was mutated through Values(): %v", sig.Intensity(1))
	}
}

func TestUpsample(t *testing.T) {
	out, err := Upsample([]float64{1, 2}, 300, 100)
	if err != nil {
		t.Fatalf("upsample: %v", err)
	}
	want := []float64{1, 1, 1, 2, 2, 2}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], want[i])
		}
	}

	same, err := Upsample([]float64{4, 5}, 60, 60)
	if err != nil || len(same) != 2 {
		t.Fatalf("identity upsample = %v, %v", same, err)
	}
}

func TestUpsampleRejectsInvalidRatios(t *testing.T) {
	tests := []struct {
		name     string
		old, new float64
	}{
		{"coarsening", 300, 600},
		{"non integer ratio", 300, 70},
		{"zero target", 300, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Upsample([]float64{1}, tt.old, tt.new); !errors.Is(err, ErrConstruction) {
				t.Fatalf("Upsample(%v -> %v) error = %v, want ErrConstruction", tt.old, tt.new, err)
			}
		})
	}
}

const sampleCSV = `Datetime (UTC),Country,Carbon intensity gCO₂eq/kWh (direct),Carbon intensity gCO₂eq/kWh (Life cycle)
2024-11-09 19:05:00,GB,120,150
2024-11-09 19:00:00,GB,100,130
2024-11-09 19:10:00,GB,80,110
2024-11-09 19:15:00,GB,60,90
`

func TestReadSamplesAndFromSamples(t *testing.T) {
	samples, err := ReadSamples(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}
	if len(samples) != 4 {
		t.Fatalf("got %d samples, want 4", len(samples))
	}

	sig, window, err := FromSamples(samples, SourceOptions{UpsampleToSec: 60})
	if err != nil {
		t.Fatalf("from samples: %v", err)
	}
	if window.NativeSlotSec != 300 {
		t.Fatalf("native slot = %v, want 300", window.NativeSlotSec)
	}
	if sig.NumSlots() != 20 {
		t.Fatalf("slots = %d, want 20", sig.NumSlots())
	}
	if sig.SlotSeconds() != 60 {
		t.Fatalf("slot seconds = %v, want 60", sig.SlotSeconds())
	}
	if sig.Intensity(0) != 100 || sig.Intensity(5) != 120 {
		t.Fatalf("samples not sorted by time: %v", sig.Values()[:6])
	}

	lifecycle, _, err := FromSamples(samples, SourceOptions{UseLifecycle: true})
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	if lifecycle.Intensity(0) != 130 {
		t.Fatalf("lifecycle intensity = %v, want 130", lifecycle.Intensity(0))
	}
}

func TestFromSamplesFiltersWindow(t *testing.T) {
	samples, err := ReadSamples(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("read samples: %v", err)
	}

	start := time.Date(2024, 11, 9, 19, 5, 0, 0, time.UTC)
	end := time.Date(2024, 11, 9, 19, 10, 0, 0, time.UTC)
	sig, window, err := FromSamples(samples, SourceOptions{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("from samples: %v", err)
	}
	if sig.NumSlots() != 2 {
		t.Fatalf("slots = %d, want 2", sig.NumSlots())
	}
	if !window.First.Equal(start) || !window.Last.Equal(end) {
		t.Fatalf("window = %v..%v", window.First, window.Last)
	}

	tooLate := end.Add(time.Minute)
	if _, _, err := FromSamples(samples, SourceOptions{Start: &tooLate, End: &tooLate}); !errors.Is(err, ErrConstruction) {
		t.Fatalf("expected ErrConstruction for empty window, got %v", err)
	}
}

func TestReadSamplesMissingColumns(t *testing.T) {
	_, err := ReadSamples(strings.NewReader("Datetime (UTC),value\n2024-01-01 00:00:00,1\n"))
	if !errors.Is(err, ErrConstruction) {
		t.Fatalf("expected ErrConstruction, got %v", err)
	}
}
