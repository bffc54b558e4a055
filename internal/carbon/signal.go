/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package carbon models a carbon-intensity time series discretised into slots.
package carbon

import (
	"errors"
	"fmt"
	"math"
)

// ErrConstruction is returned when a signal cannot be built from its source data.
var ErrConstruction = errors.New("carbon signal construction failed")

// DefaultPowerKW is the power draw of the reference execution resource.
const DefaultPowerKW = 0.150

// Signal is an immutable carbon-intensity series (gCO2eq/kWh), one value per slot,
// covering the horizon [0, NumSlots).
type Signal struct {
	ci        []float64
	prefix    []float64 // len(ci)+1, prefix[i] = sum(ci[:i])
	slotSec   float64
	slotHours float64
}

// New builds a signal from per-slot intensities and the slot length in seconds.
func New(ci []float64, slotSec float64) (*Signal, error) {
	if len(ci) == 0 {
		return nil, fmt.Errorf("%w: empty intensity series", ErrConstruction)
	}
	if !(slotSec > 0) || math.IsInf(slotSec, 0) {
		return nil, fmt.Errorf("%w: slot length must be positive, got %v", ErrConstruction, slotSec)
	}

	values := make([]float64, len(ci))
	prefix := make([]float64, len(ci)+1)
	for i, v := range ci {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: invalid intensity %v at slot %d", ErrConstruction, v, i)
		}
		values[i] = v
		prefix[i+1] = prefix[i] + v
	}

	return &Signal{
		ci:        values,
		prefix:    prefix,
		slotSec:   slotSec,
		slotHours: slotSec / 3600.0,
	}, nil
}

// NumSlots returns the horizon length N.
func (s *Signal) NumSlots() int {
	return len(s.ci)
}

// SlotSeconds returns the real-world length of one slot.
func (s *Signal) SlotSeconds() float64 {
	return s.slotSec
}

// SlotHours returns the slot length in hours.
func (s *Signal) SlotHours() float64 {
	return s.slotHours
}

// Intensity returns the intensity of a single slot, or 0 outside the horizon.
func (s *Signal) Intensity(slot int) float64 {
	if slot < 0 || slot >= len(s.ci) {
		return 0
	}
	return s.ci[slot]
}

// Values returns a copy of the per-slot intensities.
func (s *Signal) Values() []float64 {
	out := make([]float64, len(s.ci))
	copy(out, s.ci)
	return out
}

// WindowCarbon returns the grams of CO2 emitted by drawing powerKW for duration
// slots starting at start. The window is clamped to the horizon; a window that is
// empty after clamping emits exactly zero.
func (s *Signal) WindowCarbon(start, duration int, powerKW float64) float64 {
	if start < 0 {
		duration += start
		start = 0
	}
	if duration <= 0 || start >= len(s.ci) {
		return 0
	}
	end := start + duration
	if end > len(s.ci) {
		end = len(s.ci)
	}
	sum := s.prefix[end] - s.prefix[start]
	// gCO2 = (g/kWh) * kW * h
	return sum * powerKW * s.slotHours
}

// Upsample refines a series sampled every oldSlotSec to one sampled every
// newSlotSec by repeating each value. newSlotSec must evenly divide oldSlotSec.
func Upsample(ci []float64, oldSlotSec, newSlotSec float64) ([]float64, error) {
	if !(newSlotSec > 0) || !(oldSlotSec > 0) {
		return nil, fmt.Errorf("%w: slot lengths must be positive (old=%v new=%v)", ErrConstruction, oldSlotSec, newSlotSec)
	}
	if newSlotSec > oldSlotSec {
		return nil, fmt.Errorf("%w: cannot coarsen from %vs to %vs", ErrConstruction, oldSlotSec, newSlotSec)
	}

	ratio := oldSlotSec / newSlotSec
	factor := int(math.Round(ratio))
	if math.Abs(ratio-float64(factor)) > 1e-9*math.Max(1, math.Abs(ratio)) {
		return nil, fmt.Errorf("%w: old slot %vs is not an integer multiple of new slot %vs (ratio=%v)",
			ErrConstruction, oldSlotSec, newSlotSec, ratio)
	}

	out := make([]float64, 0, len(ci)*factor)
	for _, v := range ci {
		for i := 0; i < factor; i++ {
			out = append(out, v)
		}
	}
	return out, nil
}
