/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	LogLevel    string

	// Simulation defaults; plan files and flags override these.
	PowerKW            float64
	SlotSec            float64
	SearchHours        float64
	CandidateStepSlots int
	Oracle             bool
	OrderPolicy        workload.OrderPolicy
	AddVariance        float64
	UseLifecycle       bool
	QueryLimit         int
	WindowStart        string
	WindowEnd          string
	Concurrency        int

	// Result persistence; an empty DSN disables it.
	DBBackend DatabaseBackend
	DBDSN     string

	MetricsBind string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Run event publishing; empty addresses disable the publisher.
	NATSURL       string
	EventSubject  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// S3 input sources (s3://bucket/key)
	S3Region          string
	S3Endpoint        string // For S3-compatible services (MinIO, etc.)
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"CARBONSHIFT_ENV"}, "development"),
		LogLevel:    getEnvAny([]string{"CARBONSHIFT_LOG_LEVEL"}, ""),

		PowerKW:            getEnvFloatAny([]string{"CARBONSHIFT_POWER_KW"}, 0.150),
		SlotSec:            getEnvFloatAny([]string{"CARBONSHIFT_SLOT_SEC"}, 1),
		SearchHours:        getEnvFloatAny([]string{"CARBONSHIFT_SEARCH_HOURS"}, 12),
		CandidateStepSlots: getEnvIntAny([]string{"CARBONSHIFT_CANDIDATE_STEP_SLOTS"}, 0),
		Oracle:             getEnvBoolAny([]string{"CARBONSHIFT_ORACLE"}, false),
		OrderPolicy:        workload.OrderPolicy(getEnvAny([]string{"CARBONSHIFT_ORDER_POLICY"}, string(workload.OrderArrival))),
		AddVariance:        getEnvFloatAny([]string{"CARBONSHIFT_ADD_VARIANCE"}, 1.0),
		UseLifecycle:       getEnvBoolAny([]string{"CARBONSHIFT_USE_LIFECYCLE"}, true),
		QueryLimit:         getEnvIntAny([]string{"CARBONSHIFT_QUERY_LIMIT"}, 0),
		WindowStart:        getEnvAny([]string{"CARBONSHIFT_WINDOW_START"}, ""),
		WindowEnd:          getEnvAny([]string{"CARBONSHIFT_WINDOW_END"}, ""),
		Concurrency:        getEnvIntAny([]string{"CARBONSHIFT_CONCURRENCY"}, 1),

		DBBackend: DatabaseBackend(getEnvAny([]string{"CARBONSHIFT_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"CARBONSHIFT_DB_DSN", "DATABASE_URL"}, ""),

		MetricsBind: getEnvAny([]string{"CARBONSHIFT_METRICS_BIND"}, ""),

		TracingEnabled:    getEnvBoolAny([]string{"CARBONSHIFT_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"CARBONSHIFT_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"CARBONSHIFT_TRACING_SAMPLE_RATE"}, 1.0),

		NATSURL:       getEnvAny([]string{"CARBONSHIFT_NATS_URL", "NATS_URL"}, ""),
		EventSubject:  getEnvAny([]string{"CARBONSHIFT_EVENT_SUBJECT"}, "carbonshift.runs"),
		RedisAddr:     getEnvAny([]string{"CARBONSHIFT_REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"CARBONSHIFT_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"CARBONSHIFT_REDIS_DB"}, 0),

		S3Region:          getEnvAny([]string{"CARBONSHIFT_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Endpoint:        getEnvAny([]string{"CARBONSHIFT_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3AccessKeyID:     getEnvAny([]string{"CARBONSHIFT_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"CARBONSHIFT_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"CARBONSHIFT_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),
	}

	if cfg.CandidateStepSlots == 0 {
		cfg.CandidateStepSlots = DefaultCandidateStep(cfg.SlotSec)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultCandidateStep samples greedy candidates once per hour of signal time.
func DefaultCandidateStep(slotSec float64) int {
	if slotSec <= 0 {
		return 1
	}
	step := int(3600.0/slotSec + 0.5)
	if step < 1 {
		return 1
	}
	return step
}

// Validate checks the simulation settings and backend selection.
func (c *Config) Validate() error {
	if !(c.PowerKW > 0) {
		return fmt.Errorf("power_kw must be positive, got %v", c.PowerKW)
	}
	if !(c.SlotSec > 0) {
		return fmt.Errorf("slot_sec must be positive, got %v", c.SlotSec)
	}
	if c.SearchHours < 0 {
		return fmt.Errorf("search_hours must not be negative, got %v", c.SearchHours)
	}
	if c.CandidateStepSlots < 1 {
		return fmt.Errorf("candidate_step_slots must be >= 1, got %d", c.CandidateStepSlots)
	}
	if !(c.AddVariance > 0) {
		return fmt.Errorf("add_variance must be positive, got %v", c.AddVariance)
	}
	if c.QueryLimit < 0 {
		return fmt.Errorf("query_limit must not be negative, got %d", c.QueryLimit)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	policy, err := workload.ParseOrderPolicy(string(c.OrderPolicy))
	if err != nil {
		return err
	}
	c.OrderPolicy = policy

	if c.DBDSN != "" && c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if _, _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

// Window parses the configured start/end timestamps. Unset bounds are nil.
func (c *Config) Window() (*time.Time, *time.Time, error) {
	return ParseWindow(c.WindowStart, c.WindowEnd)
}

// ParseWindow parses optional window bounds in the formats the intensity exports use.
func ParseWindow(start, end string) (*time.Time, *time.Time, error) {
	var startTS, endTS *time.Time
	if strings.TrimSpace(start) != "" {
		ts, err := carbon.ParseTimestamp(start)
		if err != nil {
			return nil, nil, fmt.Errorf("window start: %w", err)
		}
		startTS = &ts
	}
	if strings.TrimSpace(end) != "" {
		ts, err := carbon.ParseTimestamp(end)
		if err != nil {
			return nil, nil, fmt.Errorf("window end: %w", err)
		}
		endTS = &ts
	}
	if startTS != nil && endTS != nil && endTS.Before(*startTS) {
		return nil, nil, fmt.Errorf("window end %s is before start %s", endTS, startTS)
	}
	return startTS, endTS, nil
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
