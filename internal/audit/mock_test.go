package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mockDB implements database.Querier for testing.
type mockDB struct {
	mu       sync.Mutex
	count    int
	rows     int
	lastSQL  string
	lastArgs []any
	execErr  error
	queryErr error
	result   [][]any
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.execErr != nil {
		return pgconn.CommandTag{}, m.execErr
	}
	m.count++
	m.rows += len(args) / 9
	m.lastSQL = sql
	m.lastArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSQL = sql
	m.lastArgs = args
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return &fakeRows{data: m.result, idx: -1}, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func (m *mockDB) insertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func (m *mockDB) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows
}

// fakeRows serves canned rows whose columns match the event select list.
type fakeRows struct {
	data [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = row[i].(uuid.UUID)
		case *string:
			*p = row[i].(string)
		case *[]byte:
			if row[i] != nil {
				*p = row[i].([]byte)
			}
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return errors.New("scan: unsupported destination")
		}
	}
	return nil
}

func eventRow(id uuid.UUID, decision, reason string, meta []byte, at time.Time) []any {
	return []any{id, "amzn1.ask.skill.test", decision, reason,
		"https://s3.amazonaws.com/echo.api/echo-api-cert.pem", "corr-1", "10.0.0.1", meta, at}
}
