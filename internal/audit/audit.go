package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Decision is the outcome of verifying one inbound skill request.
type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	return d == DecisionAccepted || d == DecisionRejected
}

// Event records a single verification decision.
type Event struct {
	ID            uuid.UUID      `json:"id"`
	ApplicationID string         `json:"application_id"`
	Decision      Decision       `json:"decision"`
	Reason        string         `json:"reason,omitempty"` // rejection code, empty when accepted
	CertURL       string         `json:"cert_url,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	RemoteAddr    string         `json:"remote_addr,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

const (
	MetadataRequestType    = "request_type"
	MetadataSkillRequestID = "skill_request_id"
	MetadataUpstreamStatus = "upstream_status"
	MetadataDetail         = "detail"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// stamp fills the id and timestamp when the caller left them unset.
func stamp(e Event, now time.Time) Event {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	return e
}
