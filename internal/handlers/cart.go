package handlers

import (
	"context"
	"log/slog"

	"github.com/dayeon-kim/shopflow/internal/event"
)

type cartService interface {
	RemoveItems(ctx context.Context, userID string, productIDs []int64) error
}

// Cart clears purchased items from the user's cart after payment. Removal
// of an already-removed item is a no-op, so this handler needs no guard.
type Cart struct {
	svc    cartService
	logger *slog.Logger
}

func NewCart(svc cartService, logger *slog.Logger) *Cart {
	return &Cart{svc: svc, logger: logger}
}

func (h *Cart) Name() string { return "cart" }

func (h *Cart) EventTypes() []string {
	return []string{event.TypePaymentCompleted}
}

func (h *Cart) Handle(ctx context.Context, evt event.Event) error {
	var p event.PaymentCompleted
	if !unmarshalPayload(h.logger, evt, &p) {
		return nil
	}
	productIDs := make([]int64, 0, len(p.Items))
	for _, item := range p.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	return h.svc.RemoveItems(ctx, p.UserID, productIDs)
}
