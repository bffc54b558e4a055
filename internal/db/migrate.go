/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"gorm.io/gorm"

	"github.com/friendsincode/carbonshift/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Sweep{},
		&models.ExperimentRun{},
		&models.ScheduleRow{},
	); err != nil {
		return err
	}
	UpdateConnectionMetrics(database)
	return nil
}
