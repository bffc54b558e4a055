/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/carbonshift/internal/db"
	"github.com/friendsincode/carbonshift/internal/eventbus"
	"github.com/friendsincode/carbonshift/internal/events"
	"github.com/friendsincode/carbonshift/internal/results"
	"github.com/friendsincode/carbonshift/internal/storage"
	"github.com/friendsincode/carbonshift/internal/telemetry"
	"github.com/friendsincode/carbonshift/internal/version"
)

// app holds the process-wide collaborators of a command.
type app struct {
	resolver  *storage.Resolver
	publisher events.Publisher
	sources   []events.Source     // broker-backed buses, for watching
	repo      *results.Repository // nil when persistence is disabled

	closers []func(context.Context) error
}

// newApp wires tracing, metrics, event buses, storage and the result store
// from cfg. Call close when the command finishes.
func newApp(ctx context.Context) (*app, error) {
	a := &app{}

	tracerProvider, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "carbonshift",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize tracer: %w", err)
	}
	a.closers = append(a.closers, tracerProvider.Shutdown)

	if cfg.MetricsBind != "" {
		srv, err := telemetry.StartMetricsServer(cfg.MetricsBind, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, srv.Shutdown)
	}

	var publishers events.Fanout
	if cfg.NATSURL != "" {
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.SubjectPrefix = cfg.EventSubject
		bus := eventbus.NewNATSBus(natsCfg, logger)
		publishers = append(publishers, bus)
		a.sources = append(a.sources, bus)
		a.closers = append(a.closers, func(context.Context) error { return bus.Close() })
	}
	if cfg.RedisAddr != "" {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		redisCfg.ChannelPrefix = cfg.EventSubject
		bus := eventbus.NewRedisBus(ctx, redisCfg, logger)
		publishers = append(publishers, bus)
		a.sources = append(a.sources, bus)
		a.closers = append(a.closers, func(context.Context) error { return bus.Close() })
	}
	if len(publishers) > 0 {
		a.publisher = publishers
	} else {
		a.publisher = events.Discard
	}

	a.resolver = storage.NewResolver(storage.S3Config{
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		UsePathStyle:    cfg.S3UsePathStyle,
	}, logger)

	if cfg.DBDSN != "" {
		database, err := openDatabase()
		if err != nil {
			a.close()
			return nil, err
		}
		a.repo = results.NewRepository(database, logger)
		a.closers = append(a.closers, func(context.Context) error { return db.Close(database) })
	}
	return a, nil
}

// openDatabase connects to the configured result store and migrates it.
func openDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect result store: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("migrate result store: %w", err)
	}
	return database, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}
	a.closers = nil
}
