package infrastructure

import (
	"splitpay/domain/events"
)

// NoopEventPublisher is an event publisher that drops every event. It is
// the publisher when NATS is not configured, and serves tests and
// maintenance commands where events should not be processed.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish does nothing with the event
func (n *NoopEventPublisher) Publish(event events.Event) error {
	return nil
}
