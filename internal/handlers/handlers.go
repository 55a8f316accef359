package handlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dayeon-kim/shopflow/internal/event"
)

// publisher is how handlers emit compensating events; satisfied by
// eventstore.Publisher.
type publisher interface {
	Publish(ctx context.Context, eventType, aggregateType, aggregateID string, payload any) (int64, error)
}

// unmarshalPayload decodes the event payload. A payload that does not parse
// is structurally broken; redelivery cannot fix it, so the caller drops the
// event as handled rather than feeding the retry loop.
func unmarshalPayload(logger *slog.Logger, evt event.Event, v any) bool {
	if err := json.Unmarshal(evt.Payload, v); err != nil {
		logger.Error("dropping event with malformed payload",
			"event_id", evt.ID, "event_type", evt.EventType, "err", err)
		return false
	}
	return true
}
