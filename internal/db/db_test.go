/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/carbonshift/internal/config"
	"github.com/friendsincode/carbonshift/internal/models"
)

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{
		Environment: "test",
		DBBackend:   config.DatabaseSQLite,
		DBDSN:       filepath.Join(t.TempDir(), "results.db"),
	}
	database, err := Connect(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, model := range []any{&models.Sweep{}, &models.ExperimentRun{}, &models.ScheduleRow{}} {
		if !database.Migrator().HasTable(model) {
			t.Fatalf("missing table for %T", model)
		}
	}
	if err := database.Create(&models.Sweep{ID: "s1", Name: "smoke"}).Error; err != nil {
		t.Fatalf("insert through callbacks: %v", err)
	}
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	cfg := &config.Config{DBBackend: "oracle-db", DBDSN: "x"}
	if _, err := Connect(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected unknown backend error")
	}
}
