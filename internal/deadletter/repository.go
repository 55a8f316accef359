package deadletter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dayeon-kim/shopflow/libs/db"
)

var ErrNotFound = errors.New("dead letter not found")

// Record is a copy of an unrecoverable event, kept for manual triage.
type Record struct {
	ID              int64
	OriginalEventID int64
	EventType       string
	AggregateType   string
	AggregateID     string
	Payload         []byte
	FailureReason   string
	Resolved        bool
	CreatedAt       time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert archives the event. The unique index on original_event_id makes a
// second archive of the same event a no-op, so both dispatch paths can
// escalate the same row without coordination.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dead_letter_events
			(original_event_id, event_type, aggregate_type, aggregate_id, payload, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (original_event_id) DO NOTHING
	`, rec.OriginalEventID, rec.EventType, rec.AggregateType, rec.AggregateID, rec.Payload, rec.FailureReason)
	return err
}

func (r *Repository) FindUnresolved(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, original_event_id, event_type, aggregate_type, aggregate_id,
		       payload, failure_reason, resolved, created_at
		FROM dead_letter_events
		WHERE resolved = false
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.OriginalEventID, &rec.EventType, &rec.AggregateType,
			&rec.AggregateID, &rec.Payload, &rec.FailureReason, &rec.Resolved, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (r *Repository) CountUnresolved(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM dead_letter_events WHERE resolved = false
	`).Scan(&n)
	return n, err
}

func (r *Repository) FindByOriginalEventID(ctx context.Context, originalEventID int64) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `
		SELECT id, original_event_id, event_type, aggregate_type, aggregate_id,
		       payload, failure_reason, resolved, created_at
		FROM dead_letter_events
		WHERE original_event_id = $1
	`, originalEventID).Scan(&rec.ID, &rec.OriginalEventID, &rec.EventType, &rec.AggregateType,
		&rec.AggregateID, &rec.Payload, &rec.FailureReason, &rec.Resolved, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *Repository) Resolve(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dead_letter_events
		SET resolved = true
		WHERE id = $1 AND resolved = false
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
