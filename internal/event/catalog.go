package event

import "log/slog"

// Closed set of event types the pipeline moves. Dispatch is driven by the
// handler registry, not this list; the catalog exists so startup logs can
// surface which publisher/subscriber wiring the team intended.
const (
	TypeOrderCreated          = "OrderCreated"
	TypeOrderConfirmed        = "OrderConfirmed"
	TypeOrderCancelled        = "OrderCancelled"
	TypePaymentCompleted      = "PaymentCompleted"
	TypePaymentFailed         = "PaymentFailed"
	TypeInventoryInsufficient = "InventoryInsufficient"
)

type CatalogEntry struct {
	Type        string
	Description string
	Publisher   string
	Subscribers []string
}

var catalog = []CatalogEntry{
	{
		Type:        TypeOrderCreated,
		Description: "order placed, awaiting payment",
		Publisher:   "order",
	},
	{
		Type:        TypeOrderConfirmed,
		Description: "payment settled and order confirmed",
		Publisher:   "order",
		Subscribers: []string{"delivery"},
	},
	{
		Type:        TypeOrderCancelled,
		Description: "order cancelled, compensations must run",
		Publisher:   "order",
		Subscribers: []string{"inventory", "point", "coupon", "delivery"},
	},
	{
		Type:        TypePaymentCompleted,
		Description: "payment captured for an order",
		Publisher:   "payment",
		Subscribers: []string{"inventory", "point", "coupon", "delivery", "cart", "ranking"},
	},
	{
		Type:        TypePaymentFailed,
		Description: "payment attempt failed",
		Publisher:   "payment",
		Subscribers: []string{"point", "order"},
	},
	{
		Type:        TypeInventoryInsufficient,
		Description: "stock deduction failed, order must be compensated",
		Publisher:   "inventory",
		Subscribers: []string{"order"},
	},
}

func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// Known reports whether the type belongs to the catalog.
func Known(eventType string) bool {
	for _, e := range catalog {
		if e.Type == eventType {
			return true
		}
	}
	return false
}

// LogCatalog prints the declared wiring at startup for operability.
func LogCatalog(logger *slog.Logger) {
	for _, e := range catalog {
		logger.Info("event catalog entry",
			"event_type", e.Type,
			"publisher", e.Publisher,
			"subscribers", e.Subscribers,
		)
	}
}
