package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type rankingService interface {
	IncrementSales(ctx context.Context, productID int64, qty int) error
	IncrementSalesBulk(ctx context.Context, counts map[int64]int) error
}

// Ranking bumps the product sales counters. It is batch-capable: the poller
// hands it a whole group of PaymentCompleted events and the counters are
// applied in one round trip. Counter increments are not repeatable, so each
// order is counted behind the guard on both paths.
type Ranking struct {
	svc    rankingService
	guard  idempotency.Guard
	logger *slog.Logger
	ttl    time.Duration
}

func NewRanking(svc rankingService, guard idempotency.Guard, logger *slog.Logger) *Ranking {
	return &Ranking{svc: svc, guard: guard, logger: logger, ttl: idempotency.DefaultTTL}
}

func (h *Ranking) Name() string { return "ranking" }

func (h *Ranking) EventTypes() []string {
	return []string{event.TypePaymentCompleted}
}

func (h *Ranking) Handle(ctx context.Context, evt event.Event) error {
	counts, err := h.countOrder(ctx, evt)
	if err != nil {
		return err
	}
	for productID, qty := range counts {
		if err := h.svc.IncrementSales(ctx, productID, qty); err != nil {
			return err
		}
	}
	return nil
}

func (h *Ranking) HandleBatch(ctx context.Context, events []event.Event) error {
	total := make(map[int64]int)
	for _, evt := range events {
		counts, err := h.countOrder(ctx, evt)
		if err != nil {
			return err
		}
		for productID, qty := range counts {
			total[productID] += qty
		}
	}
	return h.svc.IncrementSalesBulk(ctx, total)
}

// countOrder returns the per-product quantities of one payment, or nothing
// if the order was already counted.
func (h *Ranking) countOrder(ctx context.Context, evt event.Event) (map[int64]int, error) {
	var p event.PaymentCompleted
	if !unmarshalPayload(h.logger, evt, &p) {
		return nil, nil
	}
	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("ranking", "counted", p.OrderID), h.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	counts := make(map[int64]int, len(p.Items))
	for _, item := range p.Items {
		counts[item.ProductID] += item.Quantity
	}
	return counts, nil
}
