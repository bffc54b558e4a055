/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/carbonshift/internal/events"
)

var watchOpts struct {
	types  []string
	asJSON bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream run and sweep events from the event brokers",
	Long: `Subscribe to the configured NATS and/or Redis event subjects and print
every run and sweep event published by other carbonshift processes until
interrupted.

Requires CARBONSHIFT_NATS_URL or CARBONSHIFT_REDIS_ADDR.

Examples:
  carbonshift watch
  carbonshift watch --type run.completed --type run.infeasible --json`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchOpts.types, "type", nil, "Event types to print (default: all)")
	watchCmd.Flags().BoolVar(&watchOpts.asJSON, "json", false, "Print one JSON object per event")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	types := make([]events.EventType, 0, len(watchOpts.types))
	for _, name := range watchOpts.types {
		t, err := events.ParseType(name)
		if err != nil {
			return err
		}
		types = append(types, t)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	if len(a.sources) == 0 {
		return errors.New("no event broker configured: set CARBONSHIFT_NATS_URL or CARBONSHIFT_REDIS_ADDR")
	}

	logger.Info().Int("brokers", len(a.sources)).Str("subject", cfg.EventSubject).Msg("watching events")
	return streamEvents(ctx, cmd.OutOrStdout(), events.Watch(ctx, a.sources, types...), watchOpts.asJSON, time.Now)
}

// streamEvents prints events until the stream closes.
func streamEvents(ctx context.Context, w io.Writer, stream <-chan events.Event, asJSON bool, now func() time.Time) error {
	enc := json.NewEncoder(w)
	for ev := range stream {
		at := now().UTC()
		if asJSON {
			if err := enc.Encode(struct {
				Time    time.Time        `json:"time"`
				Type    events.EventType `json:"type"`
				Payload events.Payload   `json:"payload"`
			}{at, ev.Type, ev.Payload}); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %-16s %s\n", at.Format(time.RFC3339), ev.Type, formatPayload(ev.Payload)); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// formatPayload renders key=value pairs in key order.
func formatPayload(p events.Payload) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		v := fmt.Sprint(p[k])
		if strings.ContainsAny(v, " \t") {
			v = fmt.Sprintf("%q", v)
		}
		parts[i] = k + "=" + v
	}
	return strings.Join(parts, " ")
}
