/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/carbonshift/internal/events"
	"github.com/friendsincode/carbonshift/internal/telemetry"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Consecutive publish failures before the bus stops talking to Redis.
	MaxFailures int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		ChannelPrefix: "carbonshift.runs",
		DialTimeout:   5 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
	}
}

// RedisBus publishes run events on Redis pub/sub channels.
type RedisBus struct {
	client   *redis.Client
	cfg      RedisConfig
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu          sync.Mutex
	channels    map[events.EventType]*redis.PubSub
	useFallback bool
	failCount   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus creates a Redis-backed event bus. When Redis is unavailable it
// falls back to in-process delivery.
func NewRedisBus(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) *RedisBus {
	logger = logger.With().Str("component", "eventbus").Str("backend", "redis").Logger()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	busCtx, cancel := context.WithCancel(ctx)
	rb := &RedisBus{
		cfg:      cfg,
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   NodeID(),
		channels: make(map[events.EventType]*redis.PubSub),
		ctx:      busCtx,
		cancel:   cancel,
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(busCtx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis connection failed, using in-memory event bus")
		_ = client.Close()
		rb.useFallback = true
		return rb
	}

	rb.client = client
	logger.Info().Str("addr", cfg.Addr).Msg("Redis event bus initialized")
	return rb
}

// Connected reports whether events reach Redis.
func (rb *RedisBus) Connected() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return !rb.useFallback
}

// Subscribe registers a local subscriber and, when connected, relays events
// published by other nodes to it.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := rb.fallback.Subscribe(eventType)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.useFallback {
		return sub
	}
	if _, exists := rb.channels[eventType]; !exists {
		pubsub := rb.client.Subscribe(rb.ctx, subject(rb.cfg.ChannelPrefix, eventType))
		rb.channels[eventType] = pubsub
		rb.wg.Add(1)
		go rb.receive(eventType, pubsub)
	}
	return sub
}

func (rb *RedisBus) receive(eventType events.EventType, pubsub *redis.PubSub) {
	defer rb.wg.Done()
	ch := pubsub.Channel()
	for {
		select {
		case <-rb.ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				rb.logger.Debug().Str("event_type", string(eventType)).Msg("Redis channel closed")
				return
			}
			msg, err := unmarshalMessage([]byte(m.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Msg("failed to unmarshal Redis message")
				continue
			}
			if msg.NodeID == rb.nodeID {
				continue
			}
			rb.fallback.Publish(msg.EventType, msg.Payload)
		}
	}
}

// Publish delivers locally and, unless the circuit is open, to Redis.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.fallback.Publish(eventType, payload)

	rb.mu.Lock()
	fallback := rb.useFallback
	rb.mu.Unlock()
	if fallback {
		return
	}

	data, err := marshalMessage(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Msg("failed to marshal Redis message")
		telemetry.EventsPublished.WithLabelValues("redis", "error").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(rb.ctx, 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, subject(rb.cfg.ChannelPrefix, eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to Redis")
		telemetry.EventsPublished.WithLabelValues("redis", "error").Inc()
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
	telemetry.EventsPublished.WithLabelValues("redis", "ok").Inc()
}

// Unsubscribe removes a local subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.fallback.Unsubscribe(eventType, sub)
}

// Close stops receivers and closes the Redis client.
func (rb *RedisBus) Close() error {
	rb.cancel()

	rb.mu.Lock()
	for _, pubsub := range rb.channels {
		_ = pubsub.Close()
	}
	rb.channels = make(map[events.EventType]*redis.PubSub)
	client := rb.client
	rb.client = nil
	rb.useFallback = true
	rb.mu.Unlock()

	rb.wg.Wait()
	if client != nil {
		return client.Close()
	}
	return nil
}

// handleFailure opens the circuit after MaxFailures consecutive errors.
func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.failCount++
	if rb.failCount >= rb.cfg.MaxFailures && !rb.useFallback {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, switching to in-memory event bus")
		rb.useFallback = true
	}
}
