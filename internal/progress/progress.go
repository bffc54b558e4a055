/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package progress reports scheduling progress to terminals, logs and metrics.
package progress

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/telemetry"
)

// Bar draws a terminal progress bar. It is created on OnStart, when the total
// is known.
type Bar struct {
	w           io.Writer
	description string

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewBar returns a bar writing to w.
func NewBar(w io.Writer, description string) *Bar {
	return &Bar{w: w, description: description}
}

func (b *Bar) OnStart(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionSetDescription(b.description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (b *Bar) OnAssign(scheduler.Assignment) {
	b.Advance()
}

// Advance moves the bar by one step.
func (b *Bar) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

func (b *Bar) OnFinish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}

// Log writes greedy decisions to a zerolog logger. Every is the assignment
// interval between debug lines; 0 logs only start and finish.
type Log struct {
	logger  zerolog.Logger
	every   int
	total   int
	started time.Time
	last    scheduler.Assignment
}

// NewLog returns a logging observer.
func NewLog(logger zerolog.Logger, every int) *Log {
	return &Log{logger: logger, every: every}
}

func (l *Log) OnStart(total int) {
	l.total = total
	l.started = time.Now()
	l.logger.Debug().Int("queries", total).Msg("scheduling started")
}

func (l *Log) OnAssign(a scheduler.Assignment) {
	l.last = a
	if l.every <= 0 || (a.Step+1)%l.every != 0 {
		return
	}
	l.logger.Debug().
		Int("step", a.Step+1).
		Int("of", l.total).
		Str("query_id", a.QueryID).
		Int("start", a.Start).
		Int("cursor", a.Cursor).
		Float64("predicted_gco2", a.Cost).
		Msg("query placed")
}

func (l *Log) OnFinish() {
	l.logger.Debug().
		Int("queries", l.total).
		Int("cursor", l.last.Cursor).
		Dur("elapsed", time.Since(l.started)).
		Msg("scheduling finished")
}

// Metrics counts placements per scheduler.
type Metrics struct {
	counter interface{ Inc() }
}

// NewMetrics returns an observer feeding carbonshift_queries_scheduled_total.
func NewMetrics(schedulerName string) *Metrics {
	return &Metrics{counter: telemetry.QueriesScheduled.WithLabelValues(schedulerName)}
}

func (m *Metrics) OnStart(int) {}

func (m *Metrics) OnAssign(scheduler.Assignment) {
	m.counter.Inc()
}

func (m *Metrics) OnFinish() {}
