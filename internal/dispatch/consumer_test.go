package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/registry"
)

func newTestConsumer(store EventStore, dlq DeadLetters, handlers ...registry.Handler) *Consumer {
	return &Consumer{
		logger:     testLogger(),
		registry:   registry.New(handlers...),
		store:      store,
		dlq:        dlq,
		retryDelay: time.Millisecond,
	}
}

func cdcMessage(id, eventType, aggregateType, aggregateID string, value []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(aggregateID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventId", Value: []byte(id)},
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "aggregateType", Value: []byte(aggregateType)},
		},
	}
}

func TestConsumer_ProcessSuccess(t *testing.T) {
	store := newFakeStore(event.Event{ID: 7, EventType: "PaymentCompleted", AggregateID: "42"})
	dlq := newFakeDLQ(3)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}}
	c := newTestConsumer(store, dlq, h)

	msg := cdcMessage("7", "PaymentCompleted", "order", "42", []byte(`{"orderId":42}`))
	if !c.process(context.Background(), msg) {
		t.Fatal("expected message acknowledged")
	}
	if !store.processed[7] {
		t.Fatal("expected event marked processed")
	}
	if h.count() != 1 {
		t.Fatalf("expected one invocation, got %d", h.count())
	}
}

func TestConsumer_MissingHeadersDropped(t *testing.T) {
	store := newFakeStore(event.Event{ID: 7, EventType: "PaymentCompleted"})
	dlq := newFakeDLQ(3)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}}
	c := newTestConsumer(store, dlq, h)

	msg := kafka.Message{
		Key:     []byte("42"),
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: "eventId", Value: []byte("7")}},
	}
	if !c.process(context.Background(), msg) {
		t.Fatal("malformed message must be acknowledged, not retried")
	}
	if h.count() != 0 {
		t.Fatal("no handler must run for a dropped message")
	}
	if store.processed[7] {
		t.Fatal("dropped message must not mark the row processed")
	}
}

func TestConsumer_MalformedEventIDDropped(t *testing.T) {
	store := newFakeStore()
	c := newTestConsumer(store, newFakeDLQ(3))

	msg := cdcMessage("not-a-number", "PaymentCompleted", "order", "42", nil)
	if !c.process(context.Background(), msg) {
		t.Fatal("malformed event id must be acknowledged, not retried")
	}
}

func TestConsumer_FailureNotAcknowledged(t *testing.T) {
	store := newFakeStore(event.Event{ID: 7, EventType: "PaymentCompleted"})
	dlq := newFakeDLQ(3)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}, fail: true}
	c := newTestConsumer(store, dlq, h)

	msg := cdcMessage("7", "PaymentCompleted", "order", "42", []byte(`{}`))
	if c.process(context.Background(), msg) {
		t.Fatal("failed dispatch must not be acknowledged")
	}
	if store.processed[7] {
		t.Fatal("failed event must not be marked processed")
	}
	if len(store.failures[7]) != 1 {
		t.Fatalf("expected one recorded failure, got %d", len(store.failures[7]))
	}
}

func TestConsumer_ExhaustedBudgetArchivesAndAcks(t *testing.T) {
	store := newFakeStore(event.Event{ID: 7, EventType: "PaymentCompleted"})
	dlq := newFakeDLQ(2)
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}, fail: true}
	c := newTestConsumer(store, dlq, h)

	msg := cdcMessage("7", "PaymentCompleted", "order", "42", []byte(`{}`))
	// Two failures under budget, retried in place.
	for i := 0; i < 2; i++ {
		if c.process(context.Background(), msg) {
			t.Fatalf("delivery %d: expected no ack", i+1)
		}
	}
	// Third failure exceeds the budget: archive and unblock the partition.
	if !c.process(context.Background(), msg) {
		t.Fatal("expected ack after dead-letter archive")
	}
	if _, ok := dlq.archived[7]; !ok {
		t.Fatal("expected event archived")
	}
}

func TestConsumer_AlreadyProcessedSkipped(t *testing.T) {
	store := newFakeStore(event.Event{ID: 7, EventType: "PaymentCompleted"})
	store.processed[7] = true
	h := &fakeHandler{name: "h", types: []string{"PaymentCompleted"}}
	c := newTestConsumer(store, newFakeDLQ(3), h)

	msg := cdcMessage("7", "PaymentCompleted", "order", "42", []byte(`{}`))
	if !c.process(context.Background(), msg) {
		t.Fatal("already-processed event must be acknowledged")
	}
	if h.count() != 0 {
		t.Fatal("already-processed event must not be dispatched again")
	}
}

func TestConsumer_NoHandlerArchived(t *testing.T) {
	store := newFakeStore(event.Event{ID: 9, EventType: "NobodyListens"})
	dlq := newFakeDLQ(3)
	c := newTestConsumer(store, dlq)

	msg := cdcMessage("9", "NobodyListens", "order", "42", []byte(`{}`))
	if !c.process(context.Background(), msg) {
		t.Fatal("no-handler event must be acknowledged after archiving")
	}
	if reason, ok := dlq.archived[9]; !ok || reason != "no registered handler" {
		t.Fatalf("expected no-handler archive, got %v", dlq.archived)
	}
}
