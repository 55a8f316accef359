package ops

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dayeon-kim/shopflow/internal/deadletter"
)

// Handler exposes the dead-letter archive for manual triage.
type Handler struct {
	repo   *deadletter.Repository
	logger *slog.Logger
}

func New(repo *deadletter.Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /deadletters", h.listUnresolved)
	mux.HandleFunc("GET /deadletters/count", h.countUnresolved)
	mux.HandleFunc("GET /deadletters/{originalEventId}", h.findByOriginalEventID)
	mux.HandleFunc("POST /deadletters/{id}/resolve", h.resolve)
}

func recordJSON(rec deadletter.Record) map[string]any {
	return map[string]any{
		"id":                rec.ID,
		"original_event_id": rec.OriginalEventID,
		"event_type":        rec.EventType,
		"aggregate_type":    rec.AggregateType,
		"aggregate_id":      rec.AggregateID,
		"payload":           json.RawMessage(rec.Payload),
		"failure_reason":    rec.FailureReason,
		"resolved":          rec.Resolved,
		"created_at":        rec.CreatedAt,
	}
}

func (h *Handler) listUnresolved(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.repo.FindUnresolved(r.Context(), limit)
	if err != nil {
		h.logger.Error("dead letter list failed", "err", err)
		http.Error(w, "failed to list dead letters", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		out = append(out, recordJSON(rec))
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"dead_letters": out})
}

func (h *Handler) countUnresolved(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.CountUnresolved(r.Context())
	if err != nil {
		h.logger.Error("dead letter count failed", "err", err)
		http.Error(w, "failed to count dead letters", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"unresolved": n})
}

func (h *Handler) findByOriginalEventID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("originalEventId"), 10, 64)
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	rec, err := h.repo.FindByOriginalEventID(r.Context(), id)
	if errors.Is(err, deadletter.ErrNotFound) {
		http.Error(w, "dead letter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("dead letter lookup failed", "err", err)
		http.Error(w, "failed to load dead letter", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(recordJSON(rec))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	err = h.repo.Resolve(r.Context(), id)
	if errors.Is(err, deadletter.ErrNotFound) {
		http.Error(w, "dead letter not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("dead letter resolve failed", "err", err)
		http.Error(w, "failed to resolve dead letter", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
