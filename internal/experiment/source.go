/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package experiment

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/friendsincode/carbonshift/internal/carbon"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// Reader fetches raw input bytes; storage.Resolver implements it.
type Reader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Loader parses carbon-intensity and runtime inputs. Parsed files are cached
// by reference, so a sweep reads each input once.
type Loader struct {
	reader Reader

	mu       sync.Mutex
	samples  map[string][]carbon.Sample
	runtimes map[string][]workload.Runtime
}

// NewLoader creates a loader over reader.
func NewLoader(reader Reader) *Loader {
	return &Loader{
		reader:   reader,
		samples:  make(map[string][]carbon.Sample),
		runtimes: make(map[string][]workload.Runtime),
	}
}

// Signal loads ref and builds a signal with opts.
func (l *Loader) Signal(ctx context.Context, ref string, opts carbon.SourceOptions) (*carbon.Signal, carbon.Window, error) {
	samples, err := l.readSamples(ctx, ref)
	if err != nil {
		return nil, carbon.Window{}, err
	}
	sig, window, err := carbon.FromSamples(samples, opts)
	if err != nil {
		return nil, carbon.Window{}, fmt.Errorf("%s: %w", ref, err)
	}
	return sig, window, nil
}

func (l *Loader) readSamples(ctx context.Context, ref string) ([]carbon.Sample, error) {
	l.mu.Lock()
	cached, ok := l.samples[ref]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, err := l.reader.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	samples, err := carbon.ReadSamples(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	l.mu.Lock()
	l.samples[ref] = samples
	l.mu.Unlock()
	return samples, nil
}

// Runtimes loads a runtime file.
func (l *Loader) Runtimes(ctx context.Context, ref string) ([]workload.Runtime, error) {
	l.mu.Lock()
	cached, ok := l.runtimes[ref]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	data, err := l.reader.Read(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := workload.ReadRuntimes(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	l.mu.Lock()
	l.runtimes[ref] = rows
	l.mu.Unlock()
	return rows, nil
}

// Workload loads ref and converts it with opts.
func (l *Loader) Workload(ctx context.Context, ref string, opts workload.BuildOptions) (*workload.Workload, error) {
	rows, err := l.Runtimes(ctx, ref)
	if err != nil {
		return nil, err
	}
	w, err := workload.FromRuntimes(rows, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return w, nil
}
