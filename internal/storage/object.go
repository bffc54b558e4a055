/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package storage reads experiment inputs and writes reports to either the
// local filesystem or S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Location is a parsed input or output reference.
type Location struct {
	Bucket string // empty for local paths
	Key    string
}

// IsS3 reports whether the location lives in object storage.
func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Key
}

// ParseLocation accepts "s3://bucket/key" or a filesystem path.
func ParseLocation(ref string) (Location, error) {
	if ref == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.HasPrefix(ref, "s3://") {
		return Location{Key: ref}, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return Location{}, fmt.Errorf("parse %q: %w", ref, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return Location{}, fmt.Errorf("s3 location %q needs a bucket and a key", ref)
	}
	return Location{Bucket: u.Host, Key: key}, nil
}

// Resolver routes references to the local filesystem or to per-bucket S3 stores.
type Resolver struct {
	s3cfg  S3Config
	local  ObjectStore
	logger zerolog.Logger

	mu      sync.Mutex
	buckets map[string]ObjectStore
}

// NewResolver returns a resolver; S3 clients are created on first use.
func NewResolver(s3cfg S3Config, logger zerolog.Logger) *Resolver {
	return &Resolver{
		s3cfg:   s3cfg,
		local:   NewFileStore(""),
		logger:  logger.With().Str("component", "storage").Logger(),
		buckets: make(map[string]ObjectStore),
	}
}

func (r *Resolver) store(ctx context.Context, loc Location) (ObjectStore, error) {
	if !loc.IsS3() {
		return r.local, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.buckets[loc.Bucket]; ok {
		return st, nil
	}
	cfg := r.s3cfg
	cfg.Bucket = loc.Bucket
	st, err := NewS3Store(ctx, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.buckets[loc.Bucket] = st
	return st, nil
}

// Read fetches the object or file named by ref.
func (r *Resolver) Read(ctx context.Context, ref string) ([]byte, error) {
	loc, err := ParseLocation(ref)
	if err != nil {
		return nil, err
	}
	st, err := r.store(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, err := st.Get(ctx, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	r.logger.Debug().Str("location", loc.String()).Int("bytes", len(data)).Msg("read input")
	return data, nil
}

// Write stores data at ref.
func (r *Resolver) Write(ctx context.Context, ref string, data []byte) error {
	loc, err := ParseLocation(ref)
	if err != nil {
		return err
	}
	st, err := r.store(ctx, loc)
	if err != nil {
		return err
	}
	if err := st.Put(ctx, loc.Key, data); err != nil {
		return fmt.Errorf("write %s: %w", loc, err)
	}
	return nil
}
