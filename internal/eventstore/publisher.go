package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/dayeon-kim/shopflow/libs/db"
)

// Publisher is the write-side entry point domain code uses to emit events.
// PublishTx joins an existing business transaction; Publish wraps its own,
// for callers (compensating handlers) whose effect already committed.
type Publisher struct {
	pool *db.Pool
	repo *Repository
}

func NewPublisher(pool *db.Pool, repo *Repository) *Publisher {
	return &Publisher{pool: pool, repo: repo}
}

func (p *Publisher) PublishTx(ctx context.Context, tx pgx.Tx, eventType, aggregateType string, aggregateID string, payload any) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return p.repo.Append(ctx, tx, NewEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       body,
	})
}

func (p *Publisher) Publish(ctx context.Context, eventType, aggregateType string, aggregateID string, payload any) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := p.PublishTx(ctx, tx, eventType, aggregateType, aggregateID, payload)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit(ctx)
}

// AggregateKey renders an int64 aggregate id the way it is carried on the
// broker message key.
func AggregateKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
