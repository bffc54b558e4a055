/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/carbonshift/internal/events"
	"github.com/friendsincode/carbonshift/internal/telemetry"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "carbonshift.runs",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSBus publishes run events on NATS subjects "<prefix>.<event type>".
type NATSBus struct {
	conn     *nats.Conn
	cfg      NATSConfig
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu   sync.Mutex
	subs map[events.EventType]*nats.Subscription
}

// NewNATSBus connects to NATS. If the server cannot be reached the bus
// degrades to in-process delivery only.
func NewNATSBus(cfg NATSConfig, logger zerolog.Logger) *NATSBus {
	logger = logger.With().Str("component", "eventbus").Str("backend", "nats").Logger()
	nb := &NATSBus{
		cfg:      cfg,
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   NodeID(),
		subs:     make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("carbonshift " + nb.nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, using in-memory event bus")
		return nb
	}
	nb.conn = conn
	logger.Info().Str("url", conn.ConnectedUrl()).Msg("NATS event bus initialized")
	return nb
}

// Connected reports whether events reach the broker.
func (nb *NATSBus) Connected() bool {
	return nb.conn != nil && nb.conn.IsConnected()
}

// Subscribe registers a local subscriber. Remote events on the same subject
// from other nodes are delivered to it as well.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.fallback.Subscribe(eventType)
	if nb.conn == nil {
		return sub
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()
	if _, exists := nb.subs[eventType]; exists {
		return sub
	}
	ns, err := nb.conn.Subscribe(subject(nb.cfg.SubjectPrefix, eventType), func(m *nats.Msg) {
		msg, err := unmarshalMessage(m.Data)
		if err != nil {
			nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
			return
		}
		if msg.NodeID == nb.nodeID {
			return
		}
		nb.fallback.Publish(msg.EventType, msg.Payload)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed")
		return sub
	}
	nb.subs[eventType] = ns
	return sub
}

// Publish delivers locally and, when connected, to NATS.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.fallback.Publish(eventType, payload)
	if nb.conn == nil {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		telemetry.EventsPublished.WithLabelValues("nats", "error").Inc()
		return
	}
	if err := nb.conn.Publish(subject(nb.cfg.SubjectPrefix, eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
		telemetry.EventsPublished.WithLabelValues("nats", "error").Inc()
		return
	}
	telemetry.EventsPublished.WithLabelValues("nats", "ok").Inc()
}

// Unsubscribe removes a local subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.fallback.Unsubscribe(eventType, sub)
}

// Close flushes pending publishes and closes the connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	nb.mu.Lock()
	for eventType, ns := range nb.subs {
		if err := ns.Unsubscribe(); err != nil {
			nb.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("NATS unsubscribe failed")
		}
	}
	nb.subs = make(map[events.EventType]*nats.Subscription)
	nb.mu.Unlock()

	if err := nb.conn.FlushTimeout(nb.cfg.Timeout); err != nil {
		nb.logger.Warn().Err(err).Msg("NATS flush failed")
	}
	nb.conn.Close()
	return nil
}
