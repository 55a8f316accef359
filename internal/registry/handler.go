package registry

import (
	"context"

	"github.com/dayeon-kim/shopflow/internal/event"
)

// Handler is the contract every domain subscriber implements. Handle must be
// safe to invoke more than once for the same event: the two dispatch paths
// can race on a row, and the poller redrives failures.
type Handler interface {
	Name() string
	EventTypes() []string
	Handle(ctx context.Context, evt event.Event) error
}

// BatchHandler is implemented by handlers whose effect is cheaper applied
// once over a group of events of the same type. The poller groups its batch
// by event type and calls HandleBatch once per group.
type BatchHandler interface {
	Handler
	HandleBatch(ctx context.Context, events []event.Event) error
}
