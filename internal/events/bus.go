/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventSweepStarted   EventType = "sweep.started"
	EventSweepCompleted EventType = "sweep.completed"

	EventRunStarted    EventType = "run.started"
	EventRunCompleted  EventType = "run.completed"
	EventRunInfeasible EventType = "run.infeasible"
	EventRunFailed     EventType = "run.failed"
)

// AllTypes lists every event type in publication order.
var AllTypes = []EventType{
	EventSweepStarted,
	EventRunStarted,
	EventRunCompleted,
	EventRunInfeasible,
	EventRunFailed,
	EventSweepCompleted,
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is the sending half of a bus.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Source is the receiving half of a bus.
type Source interface {
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(EventType, Payload) {}

// Fanout publishes to several publishers in order.
type Fanout []Publisher

func (f Fanout) Publish(eventType EventType, payload Payload) {
	for _, p := range f {
		if p != nil {
			p.Publish(eventType, payload)
		}
	}
}

// Bus implements a simple in-process pubsub. Slow subscribers lose events
// rather than block publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 64)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. Sends never block, so the read lock
// is held throughout and Unsubscribe cannot close a channel mid-send.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}
