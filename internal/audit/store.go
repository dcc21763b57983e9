package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/skillgate/internal/platform/database"
)

const eventColumns = "id, application_id, decision, reason, cert_url, correlation_id, remote_addr, metadata, created_at"

// columnsPerEvent is the number of bind parameters each inserted row uses.
const columnsPerEvent = 9

// MaxBatchSize is the largest batch one INSERT can carry within Postgres's
// 65535 bind parameter limit.
const MaxBatchSize = 65535 / columnsPerEvent

// Store handles audit event persistence.
type Store struct{}

// NewStore creates an audit Store.
func NewStore() *Store {
	return &Store{}
}

// InsertBatch writes a batch of events to the database.
func (s *Store) InsertBatch(ctx context.Context, db database.Querier, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	sql, args, err := buildBatchInsert(events)
	if err != nil {
		return fmt.Errorf("building batch insert: %w", err)
	}
	_, err = db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("inserting verification events: %w", err)
	}
	return nil
}

// buildBatchInsert constructs a multi-row INSERT statement.
func buildBatchInsert(events []Event) (string, []any, error) {
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*columnsPerEvent)

	for i, e := range events {
		base := i * columnsPerEvent
		marks := make([]string, columnsPerEvent)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		var metaJSON []byte
		if e.Metadata != nil {
			var err error
			metaJSON, err = json.Marshal(e.Metadata)
			if err != nil {
				return "", nil, fmt.Errorf("marshaling metadata: %w", err)
			}
		}

		args = append(args, e.ID, e.ApplicationID, string(e.Decision), e.Reason, e.CertURL,
			e.CorrelationID, e.RemoteAddr, metaJSON, e.CreatedAt)
	}

	sql := fmt.Sprintf("INSERT INTO verification_events (%s) VALUES %s", eventColumns, strings.Join(placeholders, ", "))
	return sql, args, nil
}

// ListEventsParams defines filters for querying verification events.
type ListEventsParams struct {
	Decision      *Decision
	Reason        *string
	ApplicationID *string
	After         *time.Time
	Before        *time.Time
	Limit         int
}

// ListEvents returns matching events, newest first.
func (s *Store) ListEvents(ctx context.Context, db database.Querier, p ListEventsParams) ([]Event, error) {
	sql, args := buildListQuery(p)
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying verification events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e        Event
			id       uuid.UUID
			decision string
			metadata []byte
		)
		if err := rows.Scan(&id, &e.ApplicationID, &decision, &e.Reason, &e.CertURL,
			&e.CorrelationID, &e.RemoteAddr, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning verification event: %w", err)
		}
		e.ID = id
		e.Decision = Decision(decision)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating verification events: %w", err)
	}
	return events, nil
}

// buildListQuery constructs a parameterized SELECT for verification events.
func buildListQuery(p ListEventsParams) (string, []any) {
	var conditions []string
	var args []any
	argN := 1

	add := func(cond string, v any) {
		conditions = append(conditions, fmt.Sprintf(cond, argN))
		args = append(args, v)
		argN++
	}

	if p.Decision != nil {
		add("decision = $%d", string(*p.Decision))
	}
	if p.Reason != nil {
		add("reason = $%d", *p.Reason)
	}
	if p.ApplicationID != nil {
		add("application_id = $%d", *p.ApplicationID)
	}
	if p.After != nil {
		add("created_at > $%d", *p.After)
	}
	if p.Before != nil {
		add("created_at < $%d", *p.Before)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ") + "\n\t\t"
	}
	sql := fmt.Sprintf(
		`SELECT %s
		FROM verification_events
		%sORDER BY created_at DESC
		LIMIT $%d`,
		eventColumns, where, argN,
	)
	args = append(args, p.Limit)

	return sql, args
}
