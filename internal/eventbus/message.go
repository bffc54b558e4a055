/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus forwards run events to external brokers. Every bus also
// delivers locally, so in-process subscribers keep working when the broker
// is unreachable.
package eventbus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/carbonshift/internal/events"
)

// message is the wire format shared by the NATS and Redis buses.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	return &msg, nil
}

// NodeID identifies this process on the bus: hostname plus a random suffix.
func NodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "carbonshift"
	}
	return host + "-" + uuid.NewString()[:8]
}

// subject joins the configured prefix and an event type.
func subject(prefix string, eventType events.EventType) string {
	if prefix == "" {
		return string(eventType)
	}
	return prefix + "." + string(eventType)
}

var (
	_ events.Source    = (*NATSBus)(nil)
	_ events.Source    = (*RedisBus)(nil)
	_ events.Publisher = (*NATSBus)(nil)
	_ events.Publisher = (*RedisBus)(nil)
)
