package events

import "context"

// Streams
const (
	StreamOrders = "events:orders"
)

// Event types
const (
	EventPaymentReceived    = "payment_received"
	EventOrderStatusChanged = "order_status_changed"
	EventEscrowReleased     = "escrow_released"
	EventDisputeFiled       = "dispute_filed"
	EventDisputeResolved    = "dispute_resolved"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops events; used in tests and in the worker when no
// consumer is attached.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
