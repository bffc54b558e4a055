/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"context"
	"fmt"
	"sync"
)

// Event is a delivered payload tagged with its type.
type Event struct {
	Type    EventType
	Payload Payload
}

// ParseType accepts the name of a known event type.
func ParseType(name string) (EventType, error) {
	for _, t := range AllTypes {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type %q", name)
}

// Watch subscribes to types (every type when none are given) on each source and
// merges the deliveries into one channel. The channel is closed after ctx ends
// and all subscriptions have been released.
func Watch(ctx context.Context, sources []Source, types ...EventType) <-chan Event {
	if len(types) == 0 {
		types = AllTypes
	}
	out := make(chan Event, 64)

	type subscription struct {
		src       Source
		eventType EventType
		sub       Subscriber
	}
	var (
		subs []subscription
		wg   sync.WaitGroup
	)
	for _, src := range sources {
		for _, eventType := range types {
			sub := src.Subscribe(eventType)
			subs = append(subs, subscription{src: src, eventType: eventType, sub: sub})
			wg.Add(1)
			go func(eventType EventType, sub Subscriber) {
				defer wg.Done()
				for payload := range sub {
					select {
					case out <- Event{Type: eventType, Payload: payload}:
					case <-ctx.Done():
					}
				}
			}(eventType, sub)
		}
	}

	go func() {
		<-ctx.Done()
		for _, s := range subs {
			s.src.Unsubscribe(s.eventType, s.sub)
		}
		wg.Wait()
		close(out)
	}()
	return out
}
