/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package results persists experiment runs and their realized schedules.
package results

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/carbonshift/internal/models"
)

// ErrNotFound is returned when a run or sweep does not exist.
var ErrNotFound = errors.New("result not found")

const rowBatchSize = 500

// Repository stores sweeps, runs and schedule rows.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRepository wraps an open, migrated database.
func NewRepository(db *gorm.DB, logger zerolog.Logger) *Repository {
	return &Repository{db: db, logger: logger.With().Str("component", "results").Logger()}
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	SweepID   string
	Location  string
	Model     string
	Scheduler string
	Status    models.RunStatus
	Limit     int
}

// CreateSweep records the start of a plan execution.
func (r *Repository) CreateSweep(ctx context.Context, name, planPath string) (*models.Sweep, error) {
	sweep := &models.Sweep{
		ID:       uuid.NewString(),
		Name:     name,
		PlanPath: planPath,
	}
	if err := r.db.WithContext(ctx).Create(sweep).Error; err != nil {
		return nil, fmt.Errorf("create sweep: %w", err)
	}
	return sweep, nil
}

// FinishSweep stores the number of runs a sweep produced.
func (r *Repository) FinishSweep(ctx context.Context, sweepID string, runs int) error {
	res := r.db.WithContext(ctx).Model(&models.Sweep{}).Where("id = ?", sweepID).Update("run_count", runs)
	if res.Error != nil {
		return fmt.Errorf("finish sweep: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: sweep %s", ErrNotFound, sweepID)
	}
	return nil
}

// SaveRun stores a run and its schedule rows in one transaction. A missing
// run ID is filled with a new UUID.
func (r *Repository) SaveRun(ctx context.Context, run *models.ExperimentRun, rows []models.ScheduleRow) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].RunID = run.ID
			rows[i].Position = i
		}
		return tx.CreateInBatches(rows, rowBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	r.logger.Debug().
		Str("run_id", run.ID).
		Str("scheduler", run.Scheduler).
		Int("rows", len(rows)).
		Msg("run saved")
	return nil
}

// GetRun loads one run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*models.ExperimentRun, error) {
	var run models.ExperimentRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (r *Repository) ListRuns(ctx context.Context, f RunFilter) ([]models.ExperimentRun, error) {
	q := r.db.WithContext(ctx).Model(&models.ExperimentRun{})
	if f.SweepID != "" {
		q = q.Where("sweep_id = ?", f.SweepID)
	}
	if f.Location != "" {
		q = q.Where("location = ?", f.Location)
	}
	if f.Model != "" {
		q = q.Where("model = ?", f.Model)
	}
	if f.Scheduler != "" {
		q = q.Where("scheduler = ?", f.Scheduler)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var runs []models.ExperimentRun
	if err := q.Order("started_at DESC").Order("id").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ListSweeps returns sweeps newest first.
func (r *Repository) ListSweeps(ctx context.Context, limit int) ([]models.Sweep, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var sweeps []models.Sweep
	if err := q.Find(&sweeps).Error; err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}
	return sweeps, nil
}

// ScheduleRows returns a run's placements in execution order.
func (r *Repository) ScheduleRows(ctx context.Context, runID string) ([]models.ScheduleRow, error) {
	var rows []models.ScheduleRow
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("schedule rows: %w", err)
	}
	return rows, nil
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Value dereferences a stored metric, mapping nil back to NaN.
func Value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
