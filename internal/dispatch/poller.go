package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/internal/registry"
)

// Poller is the fallback dispatch path: a fixed-interval scan over
// unprocessed event rows. It redrives anything the CDC path missed or
// failed, so an event always ends up processed or dead-lettered. Rows are
// not claimed; dispatching an event the CDC path already handled is
// absorbed by handler idempotency.
type Poller struct {
	store     EventStore
	registry  *registry.Registry
	dlq       DeadLetters
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type PollerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewPoller(store EventStore, reg *registry.Registry, dlq DeadLetters, logger *slog.Logger, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Poller{
		store:     store,
		registry:  reg,
		dlq:       dlq,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.cycle(ctx); err != nil {
				p.logger.Error("poll cycle failed", "err", err)
			}
		}
	}
}

func (p *Poller) cycle(ctx context.Context) error {
	events, err := p.store.ListUnprocessed(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	for _, group := range groupByType(events) {
		if err := p.dispatchGroup(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

// eventGroup is the batch's events of one type, oldest first.
type eventGroup struct {
	eventType string
	events    []event.Event
}

func groupByType(events []event.Event) []eventGroup {
	var groups []eventGroup
	index := make(map[string]int)
	for _, evt := range events {
		i, ok := index[evt.EventType]
		if !ok {
			i = len(groups)
			index[evt.EventType] = i
			groups = append(groups, eventGroup{eventType: evt.EventType})
		}
		groups[i].events = append(groups[i].events, evt)
	}
	return groups
}

func (p *Poller) dispatchGroup(ctx context.Context, group eventGroup) error {
	handlers := p.registry.HandlersFor(group.eventType)
	if len(handlers) == 0 {
		// Nobody consumes this type; retrying cannot change that.
		for _, evt := range group.events {
			if err := p.dlq.Archive(ctx, evt, "no registered handler"); err != nil {
				return err
			}
		}
		return nil
	}

	outcomes := make(map[int64]*outcome, len(group.events))
	for _, evt := range group.events {
		outcomes[evt.ID] = &outcome{}
	}

	// Batch-capable handlers see the whole group once; a failure there
	// counts against every event in the group.
	for _, h := range handlers {
		bh, ok := h.(registry.BatchHandler)
		if !ok {
			continue
		}
		if err := invokeBatch(ctx, bh, group.events); err != nil {
			for _, evt := range group.events {
				outcomes[evt.ID].add(h.Name(), err)
			}
		}
	}

	for _, evt := range group.events {
		for _, h := range handlers {
			if _, ok := h.(registry.BatchHandler); ok {
				continue
			}
			if err := invoke(ctx, h, evt); err != nil {
				outcomes[evt.ID].add(h.Name(), err)
			}
		}
	}

	for _, evt := range group.events {
		o := outcomes[evt.ID]
		if o.ok() {
			if err := p.store.MarkProcessed(ctx, evt.ID); err != nil {
				return err
			}
			continue
		}
		if err := p.escalate(ctx, evt, o); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) escalate(ctx context.Context, evt event.Event, o *outcome) error {
	reason := o.reason()
	p.logger.Error("event dispatch failed",
		"event_id", evt.ID, "event_type", evt.EventType,
		"retry_count", evt.RetryCount, "failed_handlers", o.failed)

	if p.dlq.ShouldArchive(evt.RetryCount) {
		return p.dlq.Archive(ctx, evt, reason)
	}
	return p.store.RecordFailure(ctx, evt.ID, reason)
}

// outcome collects per-handler failures for one event so one broken
// subscriber does not hide the results of the others.
type outcome struct {
	failed []string
	errs   []error
}

func (o *outcome) add(handler string, err error) {
	o.failed = append(o.failed, handler)
	o.errs = append(o.errs, fmt.Errorf("%s: %w", handler, err))
}

func (o *outcome) ok() bool { return len(o.failed) == 0 }

func (o *outcome) reason() string {
	return fmt.Sprintf("handlers failed [%s]: %v",
		strings.Join(o.failed, ", "), errors.Join(o.errs...))
}
