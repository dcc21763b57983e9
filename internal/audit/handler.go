package audit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/skillgate/internal/platform/database"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handler serves audit query endpoints.
type Handler struct {
	db    database.Querier
	store *Store
}

// NewHandler creates an audit query handler. A nil db serves empty results.
func NewHandler(db database.Querier) *Handler {
	return &Handler{db: db, store: NewStore()}
}

// HandleListEvents returns recorded verification decisions.
// GET /api/v1/audit/events?decision=rejected&reason=request_expired&limit=50
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ListEventsParams{Limit: defaultListLimit}

	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxListLimit {
			params.Limit = n
		}
	}
	if raw := q.Get("decision"); raw != "" {
		d := Decision(raw)
		if !d.Valid() {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": "decision must be accepted or rejected"})
			return
		}
		params.Decision = &d
	}
	if raw := q.Get("reason"); raw != "" {
		params.Reason = &raw
	}
	if raw := q.Get("application_id"); raw != "" {
		params.ApplicationID = &raw
	}
	for name, dst := range map[string]**time.Time{"after": &params.After, "before": &params.Before} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAuditJSON(w, http.StatusBadRequest, map[string]string{"error": name + " must be an RFC 3339 timestamp"})
			return
		}
		*dst = &ts
	}

	if h.db == nil {
		writeAuditJSON(w, http.StatusOK, map[string]any{"events": []Event{}, "count": 0})
		return
	}

	events, err := h.store.ListEvents(r.Context(), h.db, params)
	if err != nil {
		slog.Error("listing audit events", "error", err)
		writeAuditJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	writeAuditJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func writeAuditJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
