/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// MetricsServer serves /metrics and /health while a long sweep runs.
type MetricsServer struct {
	srv    *http.Server
	ln     net.Listener
	logger zerolog.Logger
}

// NewMux returns the routes exposed by the metrics server.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// StartMetricsServer binds addr and serves in the background.
func StartMetricsServer(addr string, logger zerolog.Logger) (*MetricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	ms := &MetricsServer{
		srv: &http.Server{
			Handler:           NewMux(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		logger: logger.With().Str("component", "metrics").Logger(),
	}
	go func() {
		if err := ms.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ms.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	ms.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
	return ms, nil
}

// Addr returns the bound address.
func (m *MetricsServer) Addr() string {
	return m.ln.Addr().String()
}

// Shutdown stops the server, waiting for in-flight scrapes.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.srv.Shutdown(shutdownCtx)
}
