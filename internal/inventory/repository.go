package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Repository defines the interface for inventory persistence operations.
type Repository interface {
	SaveRun(ctx context.Context, snap *RunSnapshot) error
	LatestRun(ctx context.Context, crateID string) (*Run, error)
	ListRuns(ctx context.Context, crateID string) ([]Run, error)
	ListParameters(ctx context.Context, runID string) ([]Parameter, error)
	GetParameterByRecord(ctx context.Context, runID, record string) (*Parameter, error)
	PruneRuns(ctx context.Context, crateID string, keep int) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed inventory repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// SaveRun writes a run, its boards and its catalog in one transaction.
func (r *SQLiteRepository) SaveRun(ctx context.Context, snap *RunSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting inventory transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	run := snap.Run
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const runQuery = `INSERT INTO inventory_runs (id, crate_id, system_type, address,
		read_only, board_count, param_count, skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, runQuery,
		run.ID, run.CrateID, run.SystemType, run.Address, boolToInt(run.ReadOnly),
		run.BoardCount, run.ParamCount, run.Skipped, createdAt.UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	const boardQuery = `INSERT INTO inventory_boards (run_id, slot, model, description,
		serial, firmware, channel_count) VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, b := range run.Boards {
		if _, err := tx.ExecContext(ctx, boardQuery,
			run.ID, b.Slot, b.Model, b.Description, b.Serial, b.Firmware, b.ChannelCount); err != nil {
			return fmt.Errorf("inserting board %d of run %s: %w", b.Slot, run.ID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO inventory_parameters (run_id, token,
		category, kind, width, scope, slot, channel, name, mode, short, record, description,
		units, min_value, max_value, on_label, off_label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing parameter insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Parameters {
		if _, err := stmt.ExecContext(ctx,
			run.ID, int64(p.Token), p.Category, p.Kind, p.Width, p.Scope, p.Slot, p.Channel,
			p.Name, p.Mode, p.Short, p.Record, p.Description,
			nullStr(p.Units), nullFloat(p.Min), nullFloat(p.Max),
			nullStr(p.OnLabel), nullStr(p.OffLabel)); err != nil {
			return fmt.Errorf("inserting parameter %s: %w", p.Record, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return nil
}

// LatestRun returns the most recent run of a crate, boards included.
func (r *SQLiteRepository) LatestRun(ctx context.Context, crateID string) (*Run, error) {
	const query = `SELECT id, crate_id, system_type, address, read_only, board_count,
		param_count, skipped, created_at
		FROM inventory_runs WHERE crate_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, crateID))
	if err != nil {
		return nil, err
	}

	boards, err := r.listBoards(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Boards = boards
	return run, nil
}

// ListRuns returns every run of a crate, newest first, without boards.
func (r *SQLiteRepository) ListRuns(ctx context.Context, crateID string) ([]Run, error) {
	const query = `SELECT id, crate_id, system_type, address, read_only, board_count,
		param_count, skipped, created_at
		FROM inventory_runs WHERE crate_id = ? ORDER BY created_at DESC, rowid DESC`
	rows, err := r.db.QueryContext(ctx, query, crateID)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, nil
}

// ListParameters returns the catalog of a run in token order.
func (r *SQLiteRepository) ListParameters(ctx context.Context, runID string) ([]Parameter, error) {
	const query = `SELECT run_id, token, category, kind, width, scope, slot, channel, name,
		mode, short, record, description, units, min_value, max_value, on_label, off_label
		FROM inventory_parameters WHERE run_id = ? ORDER BY token`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying parameters: %w", err)
	}
	defer rows.Close()

	var params []Parameter
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating parameter rows: %w", err)
	}
	return params, nil
}

// GetParameterByRecord returns the parameter of a run with the given
// record name. When a record name repeats, the lowest token wins.
func (r *SQLiteRepository) GetParameterByRecord(ctx context.Context, runID, record string) (*Parameter, error) {
	const query = `SELECT run_id, token, category, kind, width, scope, slot, channel, name,
		mode, short, record, description, units, min_value, max_value, on_label, off_label
		FROM inventory_parameters WHERE run_id = ? AND record = ? ORDER BY token LIMIT 1`
	p, err := scanParameter(r.db.QueryRowContext(ctx, query, runID, record))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrParameterNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PruneRuns deletes all but the newest keep runs of a crate. Boards and
// parameters follow through ON DELETE CASCADE.
//
// Returns:
//   - int64: Number of runs deleted
//   - error: If the delete fails
func (r *SQLiteRepository) PruneRuns(ctx context.Context, crateID string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	const query = `DELETE FROM inventory_runs WHERE crate_id = ? AND id NOT IN (
		SELECT id FROM inventory_runs WHERE crate_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?)`
	res, err := r.db.ExecContext(ctx, query, crateID, crateID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs of %s: %w", crateID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning runs of %s: %w", crateID, err)
	}
	return n, nil
}

func (r *SQLiteRepository) listBoards(ctx context.Context, runID string) ([]Board, error) {
	const query = `SELECT slot, model, description, serial, firmware, channel_count
		FROM inventory_boards WHERE run_id = ? ORDER BY slot`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying boards: %w", err)
	}
	defer rows.Close()

	var boards []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.Slot, &b.Model, &b.Description, &b.Serial, &b.Firmware, &b.ChannelCount); err != nil {
			return nil, fmt.Errorf("scanning board row: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating board rows: %w", err)
	}
	return boards, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var readOnly int
	var createdAt string

	err := s.Scan(&run.ID, &run.CrateID, &run.SystemType, &run.Address, &readOnly,
		&run.BoardCount, &run.ParamCount, &run.Skipped, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	run.ReadOnly = readOnly != 0
	run.CreatedAt = parseTime(createdAt)
	return &run, nil
}

func scanParameter(s scanner) (*Parameter, error) {
	var p Parameter
	var token int64
	var units, onLabel, offLabel sql.NullString
	var lo, hi sql.NullFloat64

	err := s.Scan(&p.RunID, &token, &p.Category, &p.Kind, &p.Width, &p.Scope, &p.Slot,
		&p.Channel, &p.Name, &p.Mode, &p.Short, &p.Record, &p.Description,
		&units, &lo, &hi, &onLabel, &offLabel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning parameter: %w", err)
	}
	p.Token = uint32(token)
	p.Units = strPtr(units)
	p.Min = floatPtr(lo)
	p.Max = floatPtr(hi)
	p.OnLabel = strPtr(onLabel)
	p.OffLabel = strPtr(offLabel)
	return &p, nil
}

// parseTime accepts the RFC 3339 forms written by SaveRun and by the
// column default.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullStr converts a *string to a sql.NullString for nullable columns.
func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
