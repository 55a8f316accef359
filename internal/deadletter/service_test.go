package deadletter

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dayeon-kim/shopflow/internal/event"
)

type fakeArchive struct {
	inserted []Record
}

func (f *fakeArchive) Insert(_ context.Context, rec Record) error {
	// Mirrors the ON CONFLICT DO NOTHING semantics of the real table.
	for _, existing := range f.inserted {
		if existing.OriginalEventID == rec.OriginalEventID {
			return nil
		}
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestService_ShouldArchiveBoundary(t *testing.T) {
	s := NewService(&fakeArchive{}, discard(), 3)

	for retries, want := range map[int]bool{0: false, 2: false, 3: true, 4: true} {
		if got := s.ShouldArchive(retries); got != want {
			t.Fatalf("ShouldArchive(%d) = %v, want %v", retries, got, want)
		}
	}
}

func TestService_DefaultMaxRetries(t *testing.T) {
	s := NewService(&fakeArchive{}, discard(), 0)
	if s.ShouldArchive(DefaultMaxRetries - 1) {
		t.Fatal("should not archive below default budget")
	}
	if !s.ShouldArchive(DefaultMaxRetries) {
		t.Fatal("should archive at default budget")
	}
}

func TestService_ArchiveIdempotent(t *testing.T) {
	archive := &fakeArchive{}
	s := NewService(archive, discard(), 3)
	evt := event.Event{
		ID:            42,
		EventType:     event.TypePaymentCompleted,
		AggregateType: "order",
		AggregateID:   "42",
		Payload:       []byte(`{"orderId":42}`),
	}

	if err := s.Archive(context.Background(), evt, "handlers failed"); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if err := s.Archive(context.Background(), evt, "handlers failed again"); err != nil {
		t.Fatalf("second archive must be tolerated: %v", err)
	}
	if len(archive.inserted) != 1 {
		t.Fatalf("expected one record, got %d", len(archive.inserted))
	}
	rec := archive.inserted[0]
	if rec.OriginalEventID != 42 || rec.FailureReason != "handlers failed" {
		t.Fatalf("unexpected record %+v", rec)
	}
}
