package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/registry"
)

// EventStore is the slice of the event repository both dispatch paths share.
type EventStore interface {
	ListUnprocessed(ctx context.Context, limit int) ([]event.Event, error)
	GetByID(ctx context.Context, id int64) (event.Event, error)
	MarkProcessed(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, reason string) error
}

// DeadLetters is the escalation decision both paths defer to.
type DeadLetters interface {
	ShouldArchive(retryCount int) bool
	Archive(ctx context.Context, evt event.Event, reason string) error
}

// FanoutError aggregates per-handler failures for one event. A failing
// subscriber never aborts the loop for the others; the event as a whole
// fails if any handler did.
type FanoutError struct {
	Failed []string
	err    error
}

func (e *FanoutError) Error() string {
	return fmt.Sprintf("handlers failed [%s]: %v", strings.Join(e.Failed, ", "), e.err)
}

func (e *FanoutError) Unwrap() error { return e.err }

// fanout invokes every handler for the event and collects the outcomes.
// A handler panic is contained and counted as that handler's failure.
func fanout(ctx context.Context, handlers []registry.Handler, evt event.Event) error {
	var failed []string
	var errs []error
	for _, h := range handlers {
		if err := invoke(ctx, h, evt); err != nil {
			failed = append(failed, h.Name())
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &FanoutError{Failed: failed, err: errors.Join(errs...)}
}

func invoke(ctx context.Context, h registry.Handler, evt event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, evt)
}

func invokeBatch(ctx context.Context, h registry.BatchHandler, events []event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.HandleBatch(ctx, events)
}
