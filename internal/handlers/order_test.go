package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dayeon-kim/shopflow/internal/domain/order"
	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type fakeOrders struct {
	cancelled map[int64]string
	data      order.Cancelled
}

func (f *fakeOrders) Cancel(_ context.Context, orderID int64, reason string) (order.Cancelled, error) {
	f.cancelled[orderID] = reason
	c := f.data
	c.OrderID = orderID
	return c, nil
}

func TestOrder_InventoryInsufficientCancelsAndCompensates(t *testing.T) {
	svc := &fakeOrders{
		cancelled: make(map[int64]string),
		data: order.Cancelled{
			UserID:     "user-1",
			UsedPoints: 500,
			CouponID:   "c-1",
			Items:      []order.Item{{ProductID: 1, Quantity: 2}},
		},
	}
	pub := &fakePublisher{}
	h := NewOrder(svc, idempotency.NewMemoryGuard(), pub, discard())

	payload, _ := json.Marshal(event.InventoryInsufficient{OrderID: 42, ProductID: 1, AvailableQuantity: 0})
	evt := event.Event{ID: 9, EventType: event.TypeInventoryInsufficient, AggregateID: "42", Payload: payload}

	if err := h.Handle(context.Background(), evt); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if _, ok := svc.cancelled[42]; !ok {
		t.Fatal("expected order 42 cancelled")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one OrderCancelled event, got %d", len(pub.published))
	}
	got := pub.published[0]
	if got.eventType != event.TypeOrderCancelled {
		t.Fatalf("unexpected event type %s", got.eventType)
	}
	p, ok := got.payload.(event.OrderCancelled)
	if !ok {
		t.Fatalf("unexpected payload type %T", got.payload)
	}
	if p.OrderID != 42 || p.UsedPoints != 500 || p.CouponID != "c-1" || len(p.Items) != 1 {
		t.Fatalf("unexpected payload %+v", p)
	}

	// Redelivery must not cancel or publish twice.
	if err := h.Handle(context.Background(), evt); err != nil {
		t.Fatalf("repeat handle failed: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected compensation published once, got %d", len(pub.published))
	}
}
