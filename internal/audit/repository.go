// Package audit records parameter writes made through the HTTP API and the
// MQTT command topic, and answers queries over that history.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action classifies an audit entry.
type Action string

// Audit actions.
const (
	ActionWrite       Action = "write"
	ActionWriteFailed Action = "write_failed"
)

// Entry is one recorded write attempt.
type Entry struct {
	ID      string `json:"id"`
	CrateID string `json:"crate_id"`
	Action  Action `json:"action"`

	// Record is the record name, or the reference as given if it did not
	// resolve.
	Record string `json:"record"`

	// Subject is the token subject for API writes and the command's
	// source field for MQTT writes.
	Subject   string `json:"subject,omitempty"`
	Source    string `json:"source"`
	CommandID string `json:"command_id,omitempty"`
	Value     string `json:"value"`

	// Result is the formatted value sent to the crate.
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Sources of write attempts.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// NewWriteEntry builds an entry for a write attempt. A non-nil err marks
// the entry failed and result is ignored.
func NewWriteEntry(crateID, record, source, value, result string, err error) *Entry {
	e := &Entry{
		CrateID: crateID,
		Action:  ActionWrite,
		Record:  record,
		Source:  source,
		Value:   value,
		Result:  result,
	}
	if err != nil {
		e.Action = ActionWriteFailed
		e.Result = ""
		e.Error = err.Error()
	}
	return e
}

// Filter controls which entries List returns.
type Filter struct {
	CrateID string // optional: filter by crate
	Action  Action // optional: write or write_failed
	Record  string // optional: exact record name
	Subject string // optional: token subject
	Limit   int    // default 50, max 200
	Offset  int    // pagination offset
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Repository defines the audit trail operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores the audit trail in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts an entry. ID and CreatedAt are generated if empty, and
// Action is derived from Error when unset.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Action == "" {
		e.Action = ActionWrite
		if e.Error != "" {
			e.Action = ActionWriteFailed
		}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, crate_id, action, record, subject, source, command_id, value, result, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CrateID, string(e.Action), e.Record,
		nullableString(e.Subject), e.Source, nullableString(e.CommandID),
		e.Value, nullableString(e.Result), nullableString(e.Error),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings so the column stays NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) { //nolint:gocognit // WHERE clause assembly from filter fields
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.CrateID != "" {
		conditions = append(conditions, "crate_id = ?")
		args = append(args, filter.CrateID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Record != "" {
		conditions = append(conditions, "record = ?")
		args = append(args, filter.Record)
	}
	if filter.Subject != "" {
		conditions = append(conditions, "subject = ?")
		args = append(args, filter.Subject)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_logs %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, crate_id, action, record, subject, source, command_id, value, result, error, created_at
		 FROM audit_logs %s ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var action, createdAt string
		var subject, commandID, result, errText sql.NullString

		if err := rows.Scan(&e.ID, &e.CrateID, &action, &e.Record, &subject, &e.Source,
			&commandID, &e.Value, &result, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = Action(action)
		e.Subject = subject.String
		e.CommandID = commandID.String
		e.Result = result.String
		e.Error = errText.String

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
