package certstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/valinor-ai/skillgate/internal/skillauth"
)

// Purge drops the cached certificate for rawURL so the next request that
// names it fetches a fresh copy. It returns the cache key it removed.
func Purge(ctx context.Context, b Backend, rawURL string) (string, error) {
	normalized, err := skillauth.NormalizeCertChainURL(rawURL)
	if err != nil {
		return "", err
	}
	key := skillauth.CacheKey(normalized)
	if err := b.Delete(ctx, key); err != nil {
		return "", fmt.Errorf("purging %s: %w", normalized, err)
	}
	return key, nil
}

// Handler exposes cache maintenance to operators.
type Handler struct {
	backend Backend
}

func NewHandler(b Backend) *Handler {
	return &Handler{backend: b}
}

// HandlePurge serves DELETE /api/v1/certs/cache?url=<cert chain url>.
func (h *Handler) HandlePurge(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}
	key, err := Purge(r.Context(), h.backend, raw)
	if err != nil {
		if skillauth.Reason(err) == "untrusted_certificate_url" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid certificate url"})
			return
		}
		slog.Error("certificate cache purge failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "purge failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged", "cache_key": key})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
