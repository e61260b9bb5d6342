// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import "time"

// EventType names a lifecycle transition
type EventType string

const (
	EventLoadRequested EventType = "load_requested"
	EventLoaded        EventType = "loaded"
	EventFailed        EventType = "failed"
	// EventSuperseded is a load resolution dropped because a newer load
	// of the same unit started after it.
	EventSuperseded EventType = "superseded"
	// EventAbandoned is a load whose caller went away before it resolved.
	EventAbandoned EventType = "abandoned"
	EventShown     EventType = "shown"
	EventClosed    EventType = "closed"
	EventSkipped   EventType = "skipped"
	EventRewarded  EventType = "rewarded"
	EventReset     EventType = "reset"
	// EventInterrupted is a show cut short by a new load of the same unit.
	// No reward is granted for it.
	EventInterrupted EventType = "interrupted"
)

// Event describes one transition
type Event struct {
	Type   EventType `json:"type"`
	UnitID string    `json:"unitId,omitempty"`
	AdType AdType    `json:"adType,omitempty"`
	Status Status    `json:"status,omitempty"`
	Time   time.Time `json:"time"`
	// Latency is set on load results.
	Latency time.Duration `json:"latency,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Reward  *Reward       `json:"reward,omitempty"`
}

// Observer receives lifecycle events. Observe is called outside the
// controller's locks and may be called from timer goroutines.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }
