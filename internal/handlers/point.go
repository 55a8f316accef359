package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type pointService interface {
	Deduct(ctx context.Context, userID string, amount int64) error
	Refund(ctx context.Context, userID string, amount int64) error
}

// Point settles the points a user spent on an order: deducted when the
// payment completes, returned when the payment fails or the order is
// cancelled.
type Point struct {
	svc    pointService
	guard  idempotency.Guard
	logger *slog.Logger
	ttl    time.Duration
}

func NewPoint(svc pointService, guard idempotency.Guard, logger *slog.Logger) *Point {
	return &Point{svc: svc, guard: guard, logger: logger, ttl: idempotency.DefaultTTL}
}

func (h *Point) Name() string { return "point" }

func (h *Point) EventTypes() []string {
	return []string{event.TypePaymentCompleted, event.TypePaymentFailed, event.TypeOrderCancelled}
}

func (h *Point) Handle(ctx context.Context, evt event.Event) error {
	switch evt.EventType {
	case event.TypePaymentCompleted:
		var p event.PaymentCompleted
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		return h.deduct(ctx, p.OrderID, p.UserID, p.UsedPoints)
	case event.TypePaymentFailed:
		var p event.PaymentFailed
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		return h.refund(ctx, p.OrderID, p.UserID, p.UsedPoints)
	case event.TypeOrderCancelled:
		var p event.OrderCancelled
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		return h.refund(ctx, p.OrderID, p.UserID, p.UsedPoints)
	default:
		return nil
	}
}

func (h *Point) deduct(ctx context.Context, orderID int64, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("point", "deducted", orderID), h.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return h.svc.Deduct(ctx, userID, amount)
}

func (h *Point) refund(ctx context.Context, orderID int64, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("point", "refunded", orderID), h.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return h.svc.Refund(ctx, userID, amount)
}
