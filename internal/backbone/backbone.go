package backbone

import (
	"context"

	"marketchat/internal/types"
)

// Envelope is the unit published on the shared backbone. Origin carries the
// publishing process's id so a process can ignore its own events; exactly
// one payload field is set.
type Envelope struct {
	Origin  string              `json:"origin,omitempty"`
	Message *types.MessageEvent `json:"message,omitempty"`
	Read    *types.ReadReceipt  `json:"read,omitempty"`
	Typing  *types.TypingSignal `json:"typing,omitempty"`
}

type Handler func(env Envelope)

// Backbone bridges local broadcast to the rest of the gateway fleet.
// Delivery across the backbone is at-most-once: nothing is buffered or
// retried through an outage.
type Backbone interface {
	// Publish sends the envelope to every other process. Best-effort: an
	// error means the rest of the fleet missed this event, local delivery
	// already happened.
	Publish(ctx context.Context, env Envelope) error
	// Start begins consuming remote envelopes, invoking h for each one
	// originated by another process. Returns immediately.
	Start(ctx context.Context, h Handler)
	Close() error
}

// Noop is the single-process backbone: publishing goes nowhere and no
// remote events ever arrive. It is the default so a lone gateway runs with
// no external dependency.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Publish(ctx context.Context, env Envelope) error {
	return nil
}

func (n *Noop) Start(ctx context.Context, h Handler) {}

func (n *Noop) Close() error {
	return nil
}
