/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"context"
	"testing"
	"time"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunCompleted)
	other := bus.Subscribe(EventRunFailed)

	bus.Publish(EventRunCompleted, Payload{"run_id": "r1"})

	select {
	case got := <-sub:
		if got["run_id"] != "r1" {
			t.Fatalf("payload = %v", got)
		}
	default:
		t.Fatal("expected event on subscriber")
	}
	select {
	case got := <-other:
		t.Fatalf("unexpected event on other subscriber: %v", got)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunStarted)
	for i := 0; i < cap(sub)+10; i++ {
		bus.Publish(EventRunStarted, Payload{"i": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("subscriber holds %d events, want %d", len(sub), cap(sub))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventRunStarted)
	bus.Unsubscribe(EventRunStarted, sub)
	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	// Unknown subscribers are ignored.
	bus.Unsubscribe(EventRunStarted, make(Subscriber))
	bus.Publish(EventRunStarted, Payload{})
}

func TestFanout(t *testing.T) {
	a, b := NewBus(), NewBus()
	subA := a.Subscribe(EventSweepCompleted)
	subB := b.Subscribe(EventSweepCompleted)

	Fanout{a, nil, Discard, b}.Publish(EventSweepCompleted, Payload{"runs": 4})

	if len(subA) != 1 || len(subB) != 1 {
		t.Fatalf("fanout delivered %d/%d events", len(subA), len(subB))
	}
}

func TestWatchMergesSourcesUntilCancelled(t *testing.T) {
	a, b := NewBus(), NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	stream := Watch(ctx, []Source{a, b}, EventRunCompleted, EventSweepCompleted)

	a.Publish(EventRunCompleted, Payload{"run_id": "r1"})
	b.Publish(EventSweepCompleted, Payload{"sweep_id": "s1"})
	a.Publish(EventRunFailed, Payload{"run_id": "ignored"})

	got := map[EventType]Payload{}
	for len(got) < 2 {
		select {
		case ev := <-stream:
			got[ev.Type] = ev.Payload
		case <-time.After(time.Second):
			t.Fatalf("timed out, received %v", got)
		}
	}
	if got[EventRunCompleted]["run_id"] != "r1" || got[EventSweepCompleted]["sweep_id"] != "s1" {
		t.Fatalf("events = %v", got)
	}

	cancel()
	select {
	case ev, ok := <-stream:
		if ok {
			t.Fatalf("unexpected event after cancel: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
	// Subscriptions are released, so publishing no longer reaches anyone.
	a.Publish(EventRunCompleted, Payload{})
	if n := len(a.subs[EventRunCompleted]); n != 0 {
		t.Fatalf("bus still holds %d subscribers", n)
	}
}

func TestParseType(t *testing.T) {
	if got, err := ParseType("run.infeasible"); err != nil || got != EventRunInfeasible {
		t.Fatalf("parse = %q, %v", got, err)
	}
	if _, err := ParseType("run.exploded"); err == nil {
		t.Fatal("expected unknown type error")
	}
}
