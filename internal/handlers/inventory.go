package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dayeon-kim/shopflow/internal/domain/inventory"
	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/eventstore"
	"github.com/dayeon-kim/shopflow/internal/idempotency"
)

type inventoryService interface {
	Deduct(ctx context.Context, productID int64, qty int) error
	Restock(ctx context.Context, productID int64, qty int) error
}

// Inventory deducts stock when a payment completes and restocks on
// cancellation. Neither effect is naturally repeatable, so both sit behind
// the idempotency guard. A deduction that fails on stock publishes the
// compensating InventoryInsufficient event instead of retrying: more stock
// will not appear by redelivering the same payment.
type Inventory struct {
	svc       inventoryService
	guard     idempotency.Guard
	publisher publisher
	logger    *slog.Logger
	ttl       time.Duration
}

func NewInventory(svc inventoryService, guard idempotency.Guard, pub publisher, logger *slog.Logger) *Inventory {
	return &Inventory{
		svc:       svc,
		guard:     guard,
		publisher: pub,
		logger:    logger,
		ttl:       idempotency.DefaultTTL,
	}
}

func (h *Inventory) Name() string { return "inventory" }

func (h *Inventory) EventTypes() []string {
	return []string{event.TypePaymentCompleted, event.TypeOrderCancelled}
}

func (h *Inventory) Handle(ctx context.Context, evt event.Event) error {
	switch evt.EventType {
	case event.TypePaymentCompleted:
		return h.deduct(ctx, evt)
	case event.TypeOrderCancelled:
		return h.restock(ctx, evt)
	default:
		return nil
	}
}

func (h *Inventory) deduct(ctx context.Context, evt event.Event) error {
	var p event.PaymentCompleted
	if !unmarshalPayload(h.logger, evt, &p) {
		return nil
	}

	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("inventory", "deducted", p.OrderID), h.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for _, item := range p.Items {
		err := h.svc.Deduct(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}
		var insufficient *inventory.InsufficientStockError
		if errors.As(err, &insufficient) {
			return h.compensate(ctx, p.OrderID, insufficient)
		}
		return err
	}
	return nil
}

func (h *Inventory) compensate(ctx context.Context, orderID int64, cause *inventory.InsufficientStockError) error {
	h.logger.Warn("stock deduction failed, publishing compensation",
		"order_id", orderID, "product_id", cause.ProductID, "available", cause.Available)
	_, err := h.publisher.Publish(ctx,
		event.TypeInventoryInsufficient, "order", eventstore.AggregateKey(orderID),
		event.InventoryInsufficient{
			OrderID:           orderID,
			ProductID:         cause.ProductID,
			AvailableQuantity: cause.Available,
		})
	return err
}

func (h *Inventory) restock(ctx context.Context, evt event.Event) error {
	var p event.OrderCancelled
	if !unmarshalPayload(h.logger, evt, &p) {
		return nil
	}

	ok, err := h.guard.TryAcquire(ctx, idempotency.Key("inventory", "restocked", p.OrderID), h.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	for _, item := range p.Items {
		if err := h.svc.Restock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}
