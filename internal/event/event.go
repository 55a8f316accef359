package event

import "time"

// Event is one row of the event store. Rows are written in the same
// transaction as the business change that caused them (outbox pattern) and
// are only ever mutated by the dispatch paths afterwards.
type Event struct {
	ID            int64
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Processed     bool
	RetryCount    int
	LastError     string
	CreatedAt     time.Time
}
