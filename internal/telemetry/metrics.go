/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts experiment runs by scheduler and outcome (ok, infeasible, error).
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonshift_runs_total",
		Help: "Total number of experiment runs by scheduler and outcome.",
	}, []string{"scheduler", "outcome"})

	// ScheduleBuildDuration tracks how long a policy takes to produce a schedule.
	ScheduleBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carbonshift_schedule_build_seconds",
		Help:    "Time spent building a schedule.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"scheduler"})

	// QueriesScheduled counts placements produced by policies.
	QueriesScheduled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonshift_queries_scheduled_total",
		Help: "Total number of queries placed by a scheduling policy.",
	}, []string{"scheduler"})

	// RealizedCarbon holds the latest realized emissions per experiment cell.
	RealizedCarbon = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "carbonshift_realized_carbon_grams",
		Help: "Realized gCO2 of the most recent run for each experiment cell.",
	}, []string{"location", "scenario", "model", "scheduler"})

	// InfeasibleSchedules counts schedules rejected by the feasibility check.
	InfeasibleSchedules = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonshift_infeasible_schedules_total",
		Help: "Total number of schedules that overran the carbon signal horizon.",
	}, []string{"scheduler"})

	// DatabaseQueryDuration tracks result-store latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carbonshift_database_query_duration_seconds",
		Help:    "Duration of result-store operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed result-store operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonshift_database_errors_total",
		Help: "Total number of failed result-store operations.",
	}, []string{"operation"})

	// DatabaseConnectionsActive mirrors the open connection count of the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "carbonshift_database_connections_active",
		Help: "Open connections in the result-store pool.",
	})

	// EventsPublished counts run events handed to external buses.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carbonshift_events_published_total",
		Help: "Total number of run events published by backend and outcome.",
	}, []string{"backend", "outcome"})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
