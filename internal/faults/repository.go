package faults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// List page size bounds.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteRepository stores faults in the frame_faults table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a fault repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a fault. ID and OccurredAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, fault *Fault) error {
	if fault == nil || fault.CameraName == "" || fault.Message == "" {
		return ErrInvalidFault
	}
	if fault.ID == "" {
		fault.ID = newID()
	}
	if fault.OccurredAt.IsZero() {
		fault.OccurredAt = time.Now().UTC()
	}

	// #nosec G115 -- worker ids and pass counts never approach MaxInt64
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO frame_faults (id, camera_id, camera_name, worker, worker_id, pass, panicked, message, stack, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fault.ID, fault.CameraID, fault.CameraName, fault.Worker,
		int64(fault.WorkerID), int64(fault.Pass), boolToInt(fault.Panicked),
		fault.Message, nullableString(fault.Stack),
		formatTime(fault.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("inserting frame fault: %w", err)
	}
	return nil
}

// Get returns one fault by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Fault, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, camera_id, camera_name, worker, worker_id, pass, panicked, message, stack, occurred_at
		 FROM frame_faults WHERE id = ?`, id)

	fault, err := scanFault(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFaultNotFound
	}
	if err != nil {
		return nil, err
	}
	return fault, nil
}

// List returns faults matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.CameraName != "" {
		conditions = append(conditions, "camera_name = ?")
		args = append(args, filter.CameraName)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM frame_faults %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting frame faults: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, camera_id, camera_name, worker, worker_id, pass, panicked, message, stack, occurred_at
		 FROM frame_faults %s ORDER BY occurred_at DESC, id LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying frame faults: %w", err)
	}
	defer rows.Close()

	faults := []Fault{}
	for rows.Next() {
		fault, err := scanFault(rows)
		if err != nil {
			return nil, err
		}
		faults = append(faults, *fault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating frame faults: %w", err)
	}

	return &ListResult{
		Faults: faults,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Recent returns up to limit of the newest faults.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Fault, error) {
	result, err := r.List(ctx, Filter{Limit: limit})
	if err != nil {
		return nil, err
	}
	return result.Faults, nil
}

// Prune deletes faults that occurred before the cutoff and reports how
// many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM frame_faults WHERE occurred_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("pruning frame faults: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning frame faults: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFault(s scanner) (*Fault, error) {
	var (
		f          Fault
		workerID   int64
		pass       int64
		panicked   int
		stack      sql.NullString
		occurredAt string
	)
	if err := s.Scan(&f.ID, &f.CameraID, &f.CameraName, &f.Worker,
		&workerID, &pass, &panicked, &f.Message, &stack, &occurredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning frame fault: %w", err)
	}

	// #nosec G115 -- stored from uint64 values
	f.WorkerID, f.Pass = uint64(workerID), uint64(pass)
	f.Panicked = panicked != 0
	if stack.Valid {
		f.Stack = stack.String
	}

	t, err := time.Parse(timeLayout, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing frame fault timestamp %q: %w", occurredAt, err)
	}
	f.OccurredAt = t

	return &f, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullableString returns nil for empty strings so nullable TEXT columns
// store NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
