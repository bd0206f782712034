package events

import "context"

// Publisher publishes change events.
type Publisher interface {
	PublishChanged(ctx context.Context, event *ChangedEvent) error
}

// NoOpPublisher drops every event. Used when no broker is configured.
type NoOpPublisher struct{}

// NewNoOpPublisher creates a publisher that does nothing.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

// PublishChanged is a no-op.
func (p *NoOpPublisher) PublishChanged(_ context.Context, _ *ChangedEvent) error {
	return nil
}

// CallbackPublisher hands every event to a function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ChangedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ChangedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishChanged calls the callback.
func (p *CallbackPublisher) PublishChanged(ctx context.Context, event *ChangedEvent) error {
	return p.callback(ctx, event)
}
