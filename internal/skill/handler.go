// Package skill is the HTTP gate in front of a skill backend. It verifies
// every inbound request and only lets signed, fresh requests through.
package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/valinor-ai/skillgate/internal/audit"
	"github.com/valinor-ai/skillgate/internal/platform/middleware"
	"github.com/valinor-ai/skillgate/internal/skillauth"
)

// DefaultMaxBodyBytes bounds the request body read before verification.
const DefaultMaxBodyBytes int64 = 1 << 20

// Verifier is satisfied by *skillauth.Validator.
type Verifier interface {
	Validate(ctx context.Context, req *skillauth.Request) error
}

// Handler serves POST /skill.
type Handler struct {
	verifier Verifier
	upstream http.Handler
	audit    audit.Logger
	logger   *slog.Logger
	maxBody  int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithUpstream forwards accepted requests to next instead of answering them.
func WithUpstream(next http.Handler) HandlerOption {
	return func(h *Handler) { h.upstream = next }
}

func WithAuditLogger(l audit.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.audit = l
		}
	}
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

func NewHandler(v Verifier, opts ...HandlerOption) *Handler {
	h := &Handler{
		verifier: v,
		audit:    audit.NopLogger{},
		logger:   slog.Default(),
		maxBody:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleSkill verifies the request and either rejects it with 400 or passes
// the untouched body on.
func (h *Handler) HandleSkill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetRequestID(ctx)
	if correlationID == "" {
		correlationID = "skill-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	event := audit.Event{
		CertURL:       r.Header.Get(skillauth.CertChainURLHeader),
		CorrelationID: correlationID,
		RemoteAddr:    r.RemoteAddr,
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = errors.Join(skillauth.ErrMalformedRequest, err)
		} else {
			err = errors.Join(skillauth.ErrMalformedRequest, errors.New("reading body"))
		}
		h.reject(w, r, event, err)
		return
	}
	event.Metadata = describe(body)

	req, err := skillauth.ParseRequest(body,
		r.Header.Get(skillauth.SignatureHeader),
		r.Header.Get(skillauth.CertChainURLHeader),
	)
	if err != nil {
		h.reject(w, r, event, err)
		return
	}
	event.ApplicationID = req.ApplicationID

	if err := h.verifier.Validate(ctx, req); err != nil {
		h.reject(w, r, event, err)
		return
	}

	event.Decision = audit.DecisionAccepted
	if h.upstream == nil {
		h.audit.Log(ctx, event)
		writeJSON(w, http.StatusOK, map[string]string{"status": "verified", "correlation_id": correlationID})
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.Header.Set(middleware.RequestIDHeader, correlationID)
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	h.upstream.ServeHTTP(sw, r)

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.Metadata[audit.MetadataUpstreamStatus] = sw.status
	h.audit.Log(ctx, event)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, event audit.Event, err error) {
	reason := skillauth.Reason(err)
	event.Decision = audit.DecisionRejected
	event.Reason = reason
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.Metadata[audit.MetadataDetail] = err.Error()
	h.audit.Log(r.Context(), event)

	h.logger.Warn("skill request rejected",
		"reason", reason,
		"error", err,
		"application_id", event.ApplicationID,
		"correlation_id", event.CorrelationID,
		"remote_addr", event.RemoteAddr,
	)
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":          skillauth.Message(err),
		"reason":         reason,
		"correlation_id": event.CorrelationID,
	})
}

// describe pulls the request type and platform request id for the audit
// trail. It never fails; unknown shapes yield nil.
func describe(body []byte) map[string]any {
	var env struct {
		Request struct {
			Type      string `json:"type"`
			RequestID string `json:"requestId"`
		} `json:"request"`
	}
	if json.Unmarshal(body, &env) != nil {
		return nil
	}
	meta := map[string]any{}
	if env.Request.Type != "" {
		meta[audit.MetadataRequestType] = env.Request.Type
	}
	if env.Request.RequestID != "" {
		meta[audit.MetadataSkillRequestID] = env.Request.RequestID
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusWriter) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
