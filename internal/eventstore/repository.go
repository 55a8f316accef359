package eventstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dayeon-kim/shopflow/internal/event"
	"github.com/dayeon-kim/shopflow/libs/db"
)

var ErrNotFound = errors.New("event not found")

// NewEvent is what a publishing domain operation hands to the store.
type NewEvent struct {
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append persists the event in the caller's transaction so the event row and
// the business row commit or roll back together.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, evt NewEvent) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO events (event_type, aggregate_type, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, evt.EventType, evt.AggregateType, evt.AggregateID, evt.Payload).Scan(&id)
	return id, err
}

// ListUnprocessed returns the oldest unprocessed rows. Rows already archived
// to the dead-letter table are excluded; the archive is the exclusion signal,
// the processed flag itself is never touched on that path. There is no row
// claiming between the two dispatch paths; a duplicate dispatch is absorbed
// by handler idempotency.
func (r *Repository) ListUnprocessed(ctx context.Context, limit int) ([]event.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.event_type, e.aggregate_type, e.aggregate_id, e.payload,
		       e.processed, e.retry_count, COALESCE(e.last_error, ''), e.created_at
		FROM events e
		WHERE e.processed = false
		  AND NOT EXISTS (
			SELECT 1 FROM dead_letter_events d WHERE d.original_event_id = e.id
		  )
		ORDER BY e.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var e event.Event
		if err := rows.Scan(&e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &e.Payload,
			&e.Processed, &e.RetryCount, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (event.Event, error) {
	var e event.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_type, aggregate_type, aggregate_id, payload,
		       processed, retry_count, COALESCE(last_error, ''), created_at
		FROM events
		WHERE id = $1
	`, id).Scan(&e.ID, &e.EventType, &e.AggregateType, &e.AggregateID, &e.Payload,
		&e.Processed, &e.RetryCount, &e.LastError, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return event.Event{}, ErrNotFound
	}
	return e, err
}

// MarkProcessed flips the row exactly once; a second call is a no-op.
func (r *Repository) MarkProcessed(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE events
		SET processed = true
		WHERE id = $1 AND processed = false
	`, id)
	return err
}

func (r *Repository) RecordFailure(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE events
		SET retry_count = retry_count + 1,
		    last_error = $2
		WHERE id = $1
	`, id, reason)
	return err
}
