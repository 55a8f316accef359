package dispatch

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPoller(store EventStore, dlq DeadLetters, handlers ...registry.Handler) *Poller {
	return NewPoller(store, registry.New(handlers...), dlq, testLogger(), PollerConfig{})
}

func TestPoller_MarksProcessedOnSuccess(t *testing.T) {
	store := newFakeStore(
		event.Event{ID: 1, EventType: "PaymentCompleted"},
		event.Event{ID: 2, EventType: "PaymentCompleted"},
	)
	dlq := newFakeDLQ(3)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}}
	p := newTestPoller(store, dlq, h)

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if !store.processed[1] || !store.processed[2] {
		t.Fatalf("expected both events processed, got %v", store.processed)
	}
	if h.count() != 2 {
		t.Fatalf("expected 2 invocations, got %d", h.count())
	}
}

func TestPoller_FailureUnderBudgetRecordsRetry(t *testing.T) {
	store := newFakeStore(event.Event{ID: 1, EventType: "PaymentCompleted"})
	dlq := newFakeDLQ(3)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}, fail: true}
	p := newTestPoller(store, dlq, h)

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if store.processed[1] {
		t.Fatal("failed event must not be marked processed")
	}
	if len(store.failures[1]) != 1 {
		t.Fatalf("expected 1 recorded failure, got %d", len(store.failures[1]))
	}
	if len(dlq.archived) != 0 {
		t.Fatalf("event under retry budget must not be archived, got %v", dlq.archived)
	}
}

func TestPoller_RetryCeiling(t *testing.T) {
	const maxRetries = 3
	store := newFakeStore(event.Event{ID: 1, EventType: "PaymentCompleted"})
	dlq := newFakeDLQ(maxRetries)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}, fail: true}
	p := newTestPoller(store, dlq, h)

	// Each cycle reloads the row with its accumulated retry count.
	for i := 0; i < maxRetries; i++ {
		evts, _ := store.ListUnprocessed(context.Background(), 10)
		evts[0].RetryCount = len(store.failures[1])
		if err := p.dispatchGroup(context.Background(), eventGroup{eventType: "PaymentCompleted", events: evts}); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(dlq.archived) != 0 {
			t.Fatalf("archived after %d failures, before budget exhausted", i+1)
		}
	}

	// Failure number maxRetries+1 must archive, not retry.
	evts, _ := store.ListUnprocessed(context.Background(), 10)
	evts[0].RetryCount = len(store.failures[1])
	if err := p.dispatchGroup(context.Background(), eventGroup{eventType: "PaymentCompleted", events: evts}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if _, ok := dlq.archived[1]; !ok {
		t.Fatal("expected event archived after exceeding retry budget")
	}
	if len(store.failures[1]) != maxRetries {
		t.Fatalf("expected %d recorded failures, got %d", maxRetries, len(store.failures[1]))
	}
}

func TestPoller_NoHandlerGoesStraightToDeadLetter(t *testing.T) {
	store := newFakeStore(event.Event{ID: 1, EventType: "NobodyListens"})
	dlq := newFakeDLQ(3)
	p := newTestPoller(store, dlq)

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}
	if reason, ok := dlq.archived[1]; !ok || reason != "no registered handler" {
		t.Fatalf("expected no-handler archive, got %v", dlq.archived)
	}
	if len(store.failures[1]) != 0 {
		t.Fatal("no-handler events must not enter the retry loop")
	}
}

func TestPoller_BatchHandlerSeesWholeGroup(t *testing.T) {
	store := newFakeStore(
		event.Event{ID: 1, EventType: "PaymentCompleted"},
		event.Event{ID: 2, EventType: "PaymentCompleted"},
		event.Event{ID: 3, EventType: "OrderCancelled"},
	)
	dlq := newFakeDLQ(3)
	batch := &fakeBatchHandler{fakeHandler: fakeHandler{name: "batch", types: []string{"PaymentCompleted"}}}
	single := &fakeHandler{name: "single", types: []string{"PaymentCompleted", "OrderCancelled"}}
	p := newTestPoller(store, dlq, batch, single)

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(batch.batches) != 1 {
		t.Fatalf("expected one batch invocation, got %d", len(batch.batches))
	}
	if got := batch.batches[0]; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected batch [1 2], got %v", got)
	}
	if single.count() != 3 {
		t.Fatalf("expected per-event handler invoked 3 times, got %d", single.count())
	}
	for id := int64(1); id <= 3; id++ {
		if !store.processed[id] {
			t.Fatalf("event %d not marked processed", id)
		}
	}
}

func TestPoller_BatchFailureFailsWholeGroup(t *testing.T) {
	store := newFakeStore(
		event.Event{ID: 1, EventType: "PaymentCompleted"},
		event.Event{ID: 2, EventType: "PaymentCompleted"},
	)
	dlq := newFakeDLQ(3)
	batch := &fakeBatchHandler{fakeHandler: fakeHandler{name: "batch", types: []string{"PaymentCompleted"}, fail: true}}
	single := &fakeHandler{name: "single", types: []string{"PaymentCompleted"}}
	p := newTestPoller(store, dlq, batch, single)

	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	// Fan-out independence: the per-event handler still ran for each row,
	// but neither row may be marked processed.
	if single.count() != 2 {
		t.Fatalf("expected per-event handler invoked twice, got %d", single.count())
	}
	if store.processed[1] || store.processed[2] {
		t.Fatalf("events must not be processed after batch failure, got %v", store.processed)
	}
	if len(store.failures[1]) != 1 || len(store.failures[2]) != 1 {
		t.Fatalf("expected one failure per event, got %v", store.failures)
	}
}
