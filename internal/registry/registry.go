package registry

import (
	"log/slog"
	"sort"

	"github.com/dayeon-kim/shopflow/internal/event"
)

// Registry is the immutable event-type -> handlers index, built once at the
// composition root from the full handler collection.
type Registry struct {
	byType map[string][]Handler
}

func New(handlers ...Handler) *Registry {
	byType := make(map[string][]Handler)
	for _, h := range handlers {
		for _, t := range h.EventTypes() {
			byType[t] = append(byType[t], h)
		}
	}
	return &Registry{byType: byType}
}

// HandlersFor returns every subscriber of the type, zero or more. Fan-out
// order follows registration order.
func (r *Registry) HandlersFor(eventType string) []Handler {
	return r.byType[eventType]
}

func (r *Registry) EventTypes() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// LogCatalogDrift cross-checks registrations against the static catalog.
// Purely diagnostic; the catalog never vetoes dispatch.
func (r *Registry) LogCatalogDrift(logger *slog.Logger) {
	for _, entry := range event.Catalog() {
		n := len(r.byType[entry.Type])
		if n == 0 && len(entry.Subscribers) > 0 {
			logger.Warn("catalog event type has no registered handler",
				"event_type", entry.Type, "declared_subscribers", entry.Subscribers)
			continue
		}
		logger.Info("event subscribers registered",
			"event_type", entry.Type, "handlers", n)
	}
	for _, t := range r.EventTypes() {
		if !event.Known(t) {
			logger.Warn("handler registered for event type missing from catalog",
				"event_type", t)
		}
	}
}
