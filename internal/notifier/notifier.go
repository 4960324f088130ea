package notifier

import (
	"context"
	"time"
)

// Event is one agent occurrence worth telling someone about.
type Event struct {
	Kind    string    `json:"kind"` // trade, payout, replenish, protocol, status
	Time    time.Time `json:"time"`
	Text    string    `json:"-"` // HTML rendering for chat channels
	Payload any       `json:"payload"`
}

// Notifier delivers events. Delivery failures are logged, never returned to the caller.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
	Close()
}

// Multi fans an event out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt Event) {
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	for _, n := range m {
		n.Notify(ctx, evt)
	}
}

func (m Multi) Close() {
	for _, n := range m {
		n.Close()
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
func (Noop) Close()                        {}
