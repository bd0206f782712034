// Package events publishes notifications about changed business entities.
package events

import "time"

// Change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ChangedEvent is emitted after an entity is created, updated or deleted.
type ChangedEvent struct {
	Entity    string `json:"entity"`
	Action    string `json:"action"`
	ID        string `json:"id"`
	TraceID   string `json:"trace_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewChangedEvent stamps an event with the current UTC time.
func NewChangedEvent(entity, action, id, traceID string) *ChangedEvent {
	return &ChangedEvent{
		Entity:    entity,
		Action:    action,
		ID:        id,
		TraceID:   traceID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}
