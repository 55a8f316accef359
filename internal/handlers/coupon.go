package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type couponService interface {
	MarkUsed(ctx context.Context, couponID string, orderID int64) error
	Release(ctx context.Context, couponID string) error
}

// Coupon consumes the order's coupon on payment and hands it back when the
// order is cancelled. Events without a coupon are a success, not a skip the
// retry loop should see.
type Coupon struct {
	svc    couponService
	guard  idempotency.Guard
	logger *slog.Logger
	ttl    time.Duration
}

func NewCoupon(svc couponService, guard idempotency.Guard, logger *slog.Logger) *Coupon {
	return &Coupon{svc: svc, guard: guard, logger: logger, ttl: idempotency.DefaultTTL}
}

func (h *Coupon) Name() string { return "coupon" }

func (h *Coupon) EventTypes() []string {
	return []string{event.TypePaymentCompleted, event.TypeOrderCancelled}
}

func (h *Coupon) Handle(ctx context.Context, evt event.Event) error {
	switch evt.EventType {
	case event.TypePaymentCompleted:
		var p event.PaymentCompleted
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		if p.CouponID == "" {
			return nil
		}
		ok, err := h.guard.TryAcquire(ctx, idempotency.Key("coupon", "used", p.OrderID), h.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return h.svc.MarkUsed(ctx, p.CouponID, p.OrderID)
	case event.TypeOrderCancelled:
		var p event.OrderCancelled
		if !unmarshalPayload(h.logger, evt, &p) {
			return nil
		}
		if p.CouponID == "" {
			return nil
		}
		ok, err := h.guard.TryAcquire(ctx, idempotency.Key("coupon", "released", p.OrderID), h.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return h.svc.Release(ctx, p.CouponID)
	default:
		return nil
	}
}
