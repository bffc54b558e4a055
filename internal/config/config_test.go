/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/friendsincode/carbonshift/internal/workload"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PowerKW != 0.150 {
		t.Fatalf("power = %v, want 0.150", cfg.PowerKW)
	}
	if cfg.SearchHours != 12 {
		t.Fatalf("search hours = %v, want 12", cfg.SearchHours)
	}
	if cfg.CandidateStepSlots != 3600 {
		t.Fatalf("candidate step = %d, want 3600 at 1s slots", cfg.CandidateStepSlots)
	}
	if cfg.OrderPolicy != workload.OrderArrival {
		t.Fatalf("order = %q, want arrival", cfg.OrderPolicy)
	}
	if cfg.DBDSN != "" {
		t.Fatalf("persistence should be disabled by default, got dsn %q", cfg.DBDSN)
	}
}

func TestLoadReadsEnvKeys(t *testing.T) {
	t.Setenv("CARBONSHIFT_POWER_KW", "0.3")
	t.Setenv("CARBONSHIFT_SLOT_SEC", "300")
	t.Setenv("CARBONSHIFT_ORDER_POLICY", "PRED_SHORTEST_FIRST")
	t.Setenv("CARBONSHIFT_ORACLE", "yes")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("CARBONSHIFT_WINDOW_START", "2024-11-9 19:00:00")
	t.Setenv("CARBONSHIFT_WINDOW_END", "2024-11-14 19:00:00")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PowerKW != 0.3 || cfg.SlotSec != 300 {
		t.Fatalf("unexpected power/slot: %v/%v", cfg.PowerKW, cfg.SlotSec)
	}
	if cfg.CandidateStepSlots != 12 {
		t.Fatalf("candidate step = %d, want 12 at 300s slots", cfg.CandidateStepSlots)
	}
	if cfg.OrderPolicy != workload.OrderPredShortest {
		t.Fatalf("order = %q", cfg.OrderPolicy)
	}
	if !cfg.Oracle {
		t.Fatal("expected oracle flag")
	}
	if cfg.DBDSN != "file::memory:" {
		t.Fatalf("dsn alias not honoured: %q", cfg.DBDSN)
	}
	start, end, err := cfg.Window()
	if err != nil || start == nil || end == nil {
		t.Fatalf("window: %v %v %v", start, end, err)
	}
	if end.Sub(*start).Hours() != 120 {
		t.Fatalf("window spans %v", end.Sub(*start))
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CARBONSHIFT_POWER_KW", "-1"},
		{"CARBONSHIFT_SLOT_SEC", "0"},
		{"CARBONSHIFT_SEARCH_HOURS", "-2"},
		{"CARBONSHIFT_CANDIDATE_STEP_SLOTS", "-5"},
		{"CARBONSHIFT_ORDER_POLICY", "alphabetical"},
		{"CARBONSHIFT_WINDOW_START", "yesterday"},
		{"CARBONSHIFT_CONCURRENCY", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoadRejectsUnknownBackendWhenPersisting(t *testing.T) {
	t.Setenv("CARBONSHIFT_DB_BACKEND", "oracle-db")
	if _, err := Load(); err != nil {
		t.Fatalf("backend should be ignored without a dsn: %v", err)
	}
	t.Setenv("CARBONSHIFT_DB_DSN", "whatever")
	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported backend error")
	}
}

func TestParseWindowRejectsReversedBounds(t *testing.T) {
	if _, _, err := ParseWindow("2024-11-14", "2024-11-09"); err == nil {
		t.Fatal("expected reversed window error")
	}
	start, end, err := ParseWindow("", "")
	if err != nil || start != nil || end != nil {
		t.Fatalf("empty window = %v %v %v", start, end, err)
	}
}

const samplePlan = `
slot_sec: 1
query_limit: 750
window:
  start: "2024-11-9 19:00:00"
  end: "2024-11-14 19:00:00"
locations:
  - name: GR
    carbon: ./ci/GR_2024.csv
  - name: DE
    carbon: s3://traces/ci/DE_2024.csv
scenarios:
  - name: Baseline
  - name: Pessimistic
    add_variance: 1.5
models:
  - label: GNN
    runtimes: ./traces/gnn.csv
  - label: Oracle
    runtimes: ./traces/gnn.csv
    oracle: true
schedulers:
  - kind: fifo
    name: FIFO
  - kind: greedy
    name: Greedy Delay
    search_hours: 6
`

func TestParsePlan(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	plan, err := ParsePlan([]byte(samplePlan), cfg)
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	if plan.PowerKW != 0.150 {
		t.Fatalf("power default = %v", plan.PowerKW)
	}
	if !plan.Lifecycle() {
		t.Fatal("lifecycle should default to true")
	}
	if plan.Scenarios[0].AddVariance != 1 || plan.Scenarios[1].AddVariance != 1.5 {
		t.Fatalf("scenarios = %+v", plan.Scenarios)
	}
	greedy := plan.Schedulers[1]
	if greedy.SearchHours != 6 || greedy.CandidateStepSlots != 3600 {
		t.Fatalf("greedy defaults = %+v", greedy)
	}
	if plan.Schedulers[0].SearchHours != 12 || plan.Schedulers[0].OrderPolicy != "arrival" {
		t.Fatalf("fifo defaults = %+v", plan.Schedulers[0])
	}
	sc := greedy.SchedulerConfig(plan.PowerKW)
	if sc.PowerKW != 0.150 || sc.Name != "Greedy Delay" {
		t.Fatalf("scheduler config = %+v", sc)
	}
}

func TestParsePlanReportsAllProblems(t *testing.T) {
	_, err := ParsePlan([]byte(`
schedulers:
  - kind: round_robin
    order_policy: alphabetical
`), nil)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{"no locations", "no models", "unknown policy kind", "invalid order policy"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestLoadPlanFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	plan, err := LoadPlan(path, nil)
	if err != nil {
		t.Fatalf("load plan: %v", err)
	}
	if len(plan.Locations) != 2 || plan.Locations[1].Carbon != "s3://traces/ci/DE_2024.csv" {
		t.Fatalf("locations = %+v", plan.Locations)
	}
	if _, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestParsePlanRejectsDuplicateSchedulerNames(t *testing.T) {
	_, err := ParsePlan([]byte(`
locations:
  - name: GR
    carbon: ./ci/GR_2024.csv
models:
  - label: GNN
    runtimes: ./traces/gnn.csv
schedulers:
  - kind: fifo
  - kind: fifo
    order_policy: pred_shortest_first
`), nil)
	if err == nil || !strings.Contains(err.Error(), "duplicate scheduler name") {
		t.Fatalf("expected duplicate scheduler name error, got %v", err)
	}

	if _, err := ParsePlan([]byte(`
locations:
  - name: GR
    carbon: ./ci/GR_2024.csv
models:
  - label: GNN
    runtimes: ./traces/gnn.csv
schedulers:
  - kind: fifo
  - kind: fifo
    name: FIFO shortest
    order_policy: pred_shortest_first
`), nil); err != nil {
		t.Fatalf("distinct names should pass: %v", err)
	}
}
