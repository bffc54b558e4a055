/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestRunsTotalCounts(t *testing.T) {
	before := testutil.ToFloat64(RunsTotal.WithLabelValues("test-sched", "ok"))
	RunsTotal.WithLabelValues("test-sched", "ok").Inc()
	RunsTotal.WithLabelValues("test-sched", "ok").Inc()
	if got := testutil.ToFloat64(RunsTotal.WithLabelValues("test-sched", "ok")); got != before+2 {
		t.Fatalf("runs total = %v, want %v", got, before+2)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	RealizedCarbon.WithLabelValues("GR", "Baseline", "Oracle", "FIFO").Set(42)

	srv := httptest.NewServer(NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "carbonshift_realized_carbon_grams") {
		t.Fatal("metrics output missing realized carbon gauge")
	}

	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", health.StatusCode)
	}
}

func TestStartMetricsServer(t *testing.T) {
	ms, err := StartMetricsServer("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	resp, err := http.Get("http://" + ms.Addr() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if err := ms.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracerDisabled(t *testing.T) {
	tp, err := InitTracer(context.Background(), TracerConfig{Enabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("init tracer: %v", err)
	}
	ctx, span := StartSpan(context.Background(), "experiment.run", attribute.String("scheduler", "FIFO"))
	AddSpanAttributes(span, map[string]any{"queries": 3, "oracle": true})
	RecordError(span, errors.New("boom"))
	span.End()
	if ctx == nil {
		t.Fatal("expected context")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.TraceIDRatioBased(0.25).Description()},
	}
	for _, tt := range tests {
		if got := Sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("Sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}
