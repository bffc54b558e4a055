/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps objects as files under root. An empty root resolves keys
// against the working directory, and absolute keys are used as-is.
type FileStore struct {
	root string
}

// NewFileStore creates a filesystem-backed store.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (f *FileStore) path(key string) string {
	if f.root == "" || filepath.IsAbs(key) {
		return filepath.Clean(key)
	}
	return filepath.Join(f.root, filepath.Clean("/"+key))
}

// Put writes data, creating parent directories.
func (f *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := f.path(key)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Get reads the whole file.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}
