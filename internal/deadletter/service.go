package deadletter

import (
	"context"
	"log/slog"

	"github.com/dayeon-kim/shopflow/internal/event"
)

const DefaultMaxRetries = 3

type archive interface {
	Insert(ctx context.Context, rec Record) error
}

// Service decides when a failing event stops being retried and archives it.
type Service struct {
	archive    archive
	logger     *slog.Logger
	maxRetries int
}

func NewService(archive archive, logger *slog.Logger, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Service{archive: archive, logger: logger, maxRetries: maxRetries}
}

// ShouldArchive is asked with the retry count accumulated before the current
// failure: an event that already failed maxRetries times is archived on this
// one instead of being retried again.
func (s *Service) ShouldArchive(retryCount int) bool {
	return retryCount >= s.maxRetries
}

func (s *Service) Archive(ctx context.Context, evt event.Event, reason string) error {
	err := s.archive.Insert(ctx, Record{
		OriginalEventID: evt.ID,
		EventType:       evt.EventType,
		AggregateType:   evt.AggregateType,
		AggregateID:     evt.AggregateID,
		Payload:         evt.Payload,
		FailureReason:   reason,
	})
	if err != nil {
		return err
	}
	s.logger.Warn("event archived to dead letter",
		"event_id", evt.ID,
		"event_type", evt.EventType,
		"aggregate_id", evt.AggregateID,
		"reason", reason,
	)
	return nil
}
