package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-gpio/internal/gpio"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Entry is one stored transition.
type Entry struct {
	ID int64
	gpio.Transition
}

// Repository stores and retrieves pin transitions.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record stores a transition.
	Record(ctx context.Context, t gpio.Transition) error

	// List returns the newest transitions for pin, newest first. limit is
	// clamped to 1..500, defaulting to 50 when zero or negative.
	List(ctx context.Context, pin int, limit int) ([]Entry, error)

	// Prune deletes transitions older than olderThan and returns the count.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository on the pin_transitions table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts t. Transitions with an Unknown edge are rejected since
// they never represent a level change.
func (r *SQLiteRepository) Record(ctx context.Context, t gpio.Transition) error {
	if t.Pin <= 0 {
		return fmt.Errorf("%w: pin %d", ErrInvalidTransition, t.Pin)
	}
	if t.Edge != gpio.Rising && t.Edge != gpio.Falling {
		return fmt.Errorf("%w: edge %s", ErrInvalidTransition, t.Edge)
	}

	at := t.At
	if at.IsZero() {
		at = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pin_transitions (pin, mode, state, edge, source, at_unix_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Pin, t.Mode.String(), t.State, t.Edge.String(), t.Source.String(), at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return nil
}

// List returns the newest transitions recorded for pin.
func (r *SQLiteRepository) List(ctx context.Context, pin int, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pin, mode, state, edge, source, at_unix_ms
		 FROM pin_transitions
		 WHERE pin = ?
		 ORDER BY at_unix_ms DESC, id DESC
		 LIMIT ?`,
		pin, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}
	return entries, nil
}

// Prune deletes transitions older than now-olderThan.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrInvalidTransition)
	}

	cutoff := r.now().Add(-olderThan).UnixMilli()
	result, err := r.db.ExecContext(ctx, "DELETE FROM pin_transitions WHERE at_unix_ms < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                  Entry
		mode, edge, source string
		atMS               int64
	)
	if err := rows.Scan(&e.ID, &e.Pin, &mode, &e.State, &edge, &source, &atMS); err != nil {
		return Entry{}, fmt.Errorf("scanning transition: %w", err)
	}

	var err error
	if e.Mode, err = gpio.ParseMode(mode); err != nil {
		return Entry{}, fmt.Errorf("row %d: %w", e.ID, err)
	}
	if e.Edge, err = gpio.ParseEdge(edge); err != nil {
		return Entry{}, fmt.Errorf("row %d: %w", e.ID, err)
	}
	if e.Source, err = gpio.ParseSource(source); err != nil {
		return Entry{}, fmt.Errorf("row %d: %w", e.ID, err)
	}
	e.At = time.UnixMilli(atMS).UTC()
	return e, nil
}
