/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/carbonshift/internal/telemetry"
)

const startedKey = "carbonshift:started"

// RegisterCallbacks times every create, query, update and delete and counts
// failures, labelled by operation and table.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		operation string
		before    func(name string, fn func(*gorm.DB)) error
		after     func(name string, fn func(*gorm.DB)) error
	}{
		{"create",
			func(n string, fn func(*gorm.DB)) error { return cb.Create().Before("gorm:create").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Create().After("gorm:create").Register(n, fn) }},
		{"query",
			func(n string, fn func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Query().After("gorm:query").Register(n, fn) }},
		{"update",
			func(n string, fn func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Update().After("gorm:update").Register(n, fn) }},
		{"delete",
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, fn) },
			func(n string, fn func(*gorm.DB)) error { return cb.Delete().After("gorm:delete").Register(n, fn) }},
	}
	for _, h := range hooks {
		if err := h.before("metrics:before_"+h.operation, markStart); err != nil {
			return fmt.Errorf("%s: %w", h.operation, err)
		}
		if err := h.after("metrics:after_"+h.operation, observe(h.operation)); err != nil {
			return fmt.Errorf("%s: %w", h.operation, err)
		}
	}
	return nil
}

func markStart(tx *gorm.DB) {
	tx.InstanceSet(startedKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if v, ok := tx.InstanceGet(startedKey); ok {
			if started, ok := v.(time.Time); ok {
				table := tx.Statement.Table
				if table == "" {
					table = "unknown"
				}
				telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())
			}
		}
		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation).Inc()
		}
	}
}

// UpdateConnectionMetrics publishes the pool's open connection count.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}
