// Package eventbus provides asynchronous dispatch of task-graph execution events.
package eventbus

import (
	"context"
	"time"
)

// EventType represents the type of an event
type EventType string

// Standard event types
const (
	// Pass lifecycle events
	EventPassStarted  EventType = "pass_started"
	EventPassFinished EventType = "pass_finished"

	// Node lifecycle events
	EventNodeStarted EventType = "node_started"
	EventNodeReady   EventType = "node_ready"
	EventNodeFailed  EventType = "node_failed"
	EventNodeSkipped EventType = "node_skipped"
)

// Event describes something that happened during a scheduling pass.
type Event struct {
	Type      EventType
	PassID    string // unique identity of the scheduling pass
	NodeID    uint64 // zero for pass-level events
	NodeLabel string // empty for pass-level events
	Err       error  // set for node_failed and node_skipped
	Timestamp time.Time
	Meta      map[string]any
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType EventType, passID string, meta map[string]any) Event {
	if meta == nil {
		meta = make(map[string]any)
	}
	return Event{
		Type:      eventType,
		PassID:    passID,
		Timestamp: time.Now(),
		Meta:      meta,
	}
}

// WithNode attaches node identity to the event.
func (e Event) WithNode(id uint64, label string) Event {
	e.NodeID = id
	e.NodeLabel = label
	return e
}

// WithError attaches a failure to the event.
func (e Event) WithError(err error) Event {
	e.Err = err
	return e
}

// Handler is a function that handles events
type Handler func(context.Context, Event) error

// Bus is the central event dispatch system.
type Bus interface {
	// Publish sends an event to all subscribed handlers
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for specific event types.
	// Returns a subscription ID that can be used to unsubscribe.
	Subscribe(eventTypes []EventType, handler Handler) (string, error)

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler Handler) (string, error)

	// Unsubscribe removes a subscription by ID
	Unsubscribe(subscriptionID string) error

	// Close shuts down the bus, cleaning up resources
	Close() error
}
