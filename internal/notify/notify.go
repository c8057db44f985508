// Package notify fans change events out to observers: connected websocket
// clients and, optionally, a Kafka topic.
package notify

import "context"

// Event names carried on the push channel.
const (
	EventDisasterUpdated = "disaster_updated"
	EventNewReport       = "new_report"
)

// Notifier delivers one event to every current observer. Broadcast must not
// block on slow observers and never fails the caller.
type Notifier interface {
	Broadcast(ctx context.Context, event string, payload any)
}

// Message is the frame written to observers.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Multi broadcasts to each notifier in order.
type Multi []Notifier

func (m Multi) Broadcast(ctx context.Context, event string, payload any) {
	for _, n := range m {
		n.Broadcast(ctx, event, payload)
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Broadcast(context.Context, string, any) {}
