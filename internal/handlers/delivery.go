package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type deliveryService interface {
	Start(ctx context.Context, orderID int64, address string) (string, error)
	Cancel(ctx context.Context, orderID int64) error
}

// Delivery starts the shipment once the payment settles (or the order is
// confirmed, whichever event arrives) and cancels it when the saga cancels
// the order. Both start triggers share one guard key, so an order's shipment
// starts at most once.
type Delivery struct {
	svc    deliveryService
	guard  idempotency.Guard
	logger *slog.Logger
	ttl    time.Duration
}

func NewDelivery(svc deliveryService, guard idempotency.Guard, logger *slog.Logger) *Delivery {
	return &Delivery{svc: svc, guard: guard, logger: logger, ttl: idempotency.DefaultTTL}
}

func (h *Delivery) Name() string { return "delivery" }

func (h *Delivery) EventTypes() []string {
	return []string{event.TypePaymentCompleted, event.TypeOrderConfirmed, event.TypeOrderCancelled}
}

func (h *Delivery) Handle(ctx context.Context, evt event.Event) error {
	switch evt.EventType {
	case event.TypePaymentCompleted:
		var p event.PaymentCompleted
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		return h.start(ctx, p.OrderID, p.Address)
	case event.TypeOrderConfirmed:
		var p event.OrderConfirmed
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		return h.start(ctx, p.OrderID, p.Address)
	case event.TypeOrderCancelled:
		var p event.OrderCancelled
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		// Cancelling an order with no shipment yet is a no-op in the
		// domain service, so no guard is needed here.
		return h.svc.Cancel(ctx, p.OrderID)
	default:
		return nil
	}
}

func (h *Delivery) start(ctx context.Context, orderID int64, address string) error {
	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("delivery", "started", orderID), h.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	tracking, err := h.svc.Start(ctx, orderID, address)
	if err != nil {
		return err
	}
	h.logger.Info("delivery started", "order_id", orderID, "tracking_number", tracking)
	return nil
}
