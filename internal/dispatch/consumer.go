package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/registry"
	"github.com/dayeon-kim/shopflow/libs/kafkax"
)

// Consumer is the primary dispatch path: it reacts to outbox rows the CDC
// connector forwards to the broker. Messages are keyed by aggregate id, so
// events of one aggregate arrive in order on one partition. A message is
// committed only once its event is settled (processed, archived, or dropped
// as malformed); an unsettled message blocks its partition and is retried in
// place, which is the at-least-once contract of this path.
type Consumer struct {
	reader     *kafka.Reader
	logger     *slog.Logger
	registry   *registry.Registry
	store      EventStore
	dlq        DeadLetters
	retryDelay time.Duration
}

type ConsumerConfig struct {
	Brokers    string
	GroupID    string
	Topic      string
	RetryDelay time.Duration
}

func NewConsumer(logger *slog.Logger, reg *registry.Registry, store EventStore, dlq DeadLetters, cfg ConsumerConfig) *Consumer {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	var reader *kafka.Reader
	if brokers := kafkax.SplitBrokers(cfg.Brokers); len(brokers) > 0 {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}
	return &Consumer{
		reader:     reader,
		logger:     logger,
		registry:   reg,
		store:      store,
		dlq:        dlq,
		retryDelay: cfg.RetryDelay,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	if c.reader == nil {
		c.logger.Warn("cdc consumer disabled (no kafka brokers configured); poller is the only dispatch path")
		return
	}
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}
		c.settle(ctx, msg)
	}
}

// settle drives one message to an acknowledged outcome, retrying in place on
// failure so the partition stays blocked and per-aggregate order holds.
func (c *Consumer) settle(ctx context.Context, msg kafka.Message) {
	for {
		ack := c.process(ctx, msg)
		if ack {
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Error("kafka commit failed", "err", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		time.Sleep(c.retryDelay)
	}
}

// process handles one delivery and reports whether the message may be
// acknowledged.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "event.dispatch.cdc",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	if !meta.Complete() {
		// Redelivery cannot grow headers back; drop instead of blocking
		// the partition.
		c.logger.Warn("dropping message with missing headers",
			"event_id", meta.EventID, "event_type", meta.EventType, "aggregate_type", meta.AggregateType)
		return true
	}
	eventID, err := strconv.ParseInt(meta.EventID, 10, 64)
	if err != nil {
		c.logger.Warn("dropping message with malformed event id", "event_id", meta.EventID)
		return true
	}
	span.SetAttributes(attribute.Int64("event.id", eventID), attribute.String("event.type", meta.EventType))

	row, err := c.store.GetByID(ctxSpan, eventID)
	if err != nil {
		c.logger.Error("event lookup failed", "event_id", eventID, "err", err)
		span.RecordError(err)
		return false
	}
	if row.Processed {
		// The poller got there first. Handler idempotency would absorb a
		// second dispatch, but there is no point making one.
		return true
	}

	evt := event.Event{
		ID:            eventID,
		EventType:     meta.EventType,
		AggregateType: meta.AggregateType,
		AggregateID:   meta.AggregateID,
		Payload:       UnwrapConnectorEnvelope(msg.Value),
		RetryCount:    row.RetryCount,
	}

	handlers := c.registry.HandlersFor(evt.EventType)
	if len(handlers) == 0 {
		if err := c.dlq.Archive(ctxSpan, evt, "no registered handler"); err != nil {
			c.logger.Error("dead letter archive failed", "event_id", evt.ID, "err", err)
			span.RecordError(err)
			return false
		}
		return true
	}

	if err := fanout(ctxSpan, handlers, evt); err != nil {
		span.RecordError(err)
		c.logger.Error("event dispatch failed",
			"event_id", evt.ID, "event_type", evt.EventType, "err", err)
		if recErr := c.store.RecordFailure(ctxSpan, evt.ID, err.Error()); recErr != nil {
			c.logger.Error("recording failure failed", "event_id", evt.ID, "err", recErr)
		}
		if c.dlq.ShouldArchive(evt.RetryCount) {
			if archErr := c.dlq.Archive(ctxSpan, evt, err.Error()); archErr != nil {
				c.logger.Error("dead letter archive failed", "event_id", evt.ID, "err", archErr)
				return false
			}
			return true
		}
		return false
	}

	if err := c.store.MarkProcessed(ctxSpan, evt.ID); err != nil {
		// Handlers succeeded but the mark did not stick; redelivery is
		// safe because every handler is idempotent.
		c.logger.Error("mark processed failed", "event_id", evt.ID, "err", err)
		span.RecordError(err)
		return false
	}
	return true
}
