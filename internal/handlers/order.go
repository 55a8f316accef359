package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dayeon-kim/shopflow/internal/domain/order"
	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/eventstore"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type orderService interface {
	Cancel(ctx context.Context, orderID int64, reason string) (order.Cancelled, error)
}

// Order runs the cancellation step of the saga: a compensating
// InventoryInsufficient or a PaymentFailed cancels the order and publishes
// OrderCancelled, which fans out to the other compensations.
type Order struct {
	svc       orderService
	guard     idempotency.Guard
	publisher publisher
	logger    *slog.Logger
	ttl       time.Duration
}

func NewOrder(svc orderService, guard idempotency.Guard, pub publisher, logger *slog.Logger) *Order {
	return &Order{svc: svc, guard: guard, publisher: pub, logger: logger, ttl: idempotency.DefaultTTL}
}

func (h *Order) Name() string { return "order" }

func (h *Order) EventTypes() []string {
	return []string{event.TypeInventoryInsufficient, event.TypePaymentFailed}
}

func (h *Order) Handle(ctx context.Context, evt event.Event) error {
	var orderID int64
	var reason string

	switch evt.EventType {
	case event.TypeInventoryInsufficient:
		var p event.InventoryInsufficient
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		orderID = p.OrderID
		reason = fmt.Sprintf("insufficient stock for product %d (available %d)", p.ProductID, p.AvailableQuantity)
	case event.TypePaymentFailed:
		var p event.PaymentFailed
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		orderID = p.OrderID
		reason = "payment failed"
		if p.Reason != "" {
			reason = "payment failed: " + p.Reason
		}
	default:
		return nil
	}

	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("order", "cancelled", orderID), h.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	cancelled, err := h.svc.Cancel(ctx, orderID, reason)
	if err != nil {
		return err
	}

	items := make([]event.OrderItem, 0, len(cancelled.Items))
	for _, item := range cancelled.Items {
		items = append(items, event.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	_, err = h.publisher.Publish(ctx,
		event.TypeOrderCancelled, "order", eventstore.AggregateKey(orderID),
		event.OrderCancelled{
			OrderID:    orderID,
			UserID:     cancelled.UserID,
			Items:      items,
			UsedPoints: cancelled.UsedPoints,
			CouponID:   cancelled.CouponID,
			Reason:     reason,
		})
	if err != nil {
		return err
	}
	h.logger.Info("order cancelled by saga", "order_id", orderID, "reason", reason)
	return nil
}
