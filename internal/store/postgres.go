package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	listEventsSQL = `SELECT id, date, user_name, user_color, time, created_at
FROM events
ORDER BY date ASC, created_at ASC, id ASC`

	upsertEventSQL = `INSERT INTO events (date, user_name, user_color, time)
VALUES ($1, $2, $3, $4)
ON CONFLICT (date, user_name) DO UPDATE
SET user_color = EXCLUDED.user_color, time = EXCLUDED.time`

	deleteEventSQL     = `DELETE FROM events WHERE date = $1 AND user_name = $2`
	deleteAllEventsSQL = `DELETE FROM events`
	sweepEventsSQL     = `DELETE FROM events WHERE date < $1`
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// eventRepo implements EventRepository.
type eventRepo struct {
	pool Pool
}

func (r *eventRepo) List(ctx context.Context) ([]Event, error) {
	const op = "list events"
	defer observeDB(ctx, "db.events.list")()

	rows, err := r.pool.Query(ctx, listEventsSQL)
	if err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e         Event
			createdAt *time.Time
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.UserName, &e.UserColor, &e.Time, &createdAt); err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
		if createdAt != nil {
			e.CreatedAt = *createdAt
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	return events, nil
}

func (r *eventRepo) Upsert(ctx context.Context, event Event) error {
	defer observeDB(ctx, "db.events.upsert")()
	if err := upsertEvent(ctx, r.pool, event); err != nil {
		return &StoreError{Op: "upsert event", Err: err}
	}
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, date, userName string) error {
	defer observeDB(ctx, "db.events.delete")()
	if _, err := r.pool.Exec(ctx, deleteEventSQL, date, userName); err != nil {
		return &StoreError{Op: "delete event", Err: err}
	}
	return nil
}

// ReplaceAll deletes every row and re-inserts events inside one transaction.
// Rows go through the same validated upsert as Upsert, so a duplicate
// (date, user) pair later in the slice overwrites the earlier one.
func (r *eventRepo) ReplaceAll(ctx context.Context, events []Event) error {
	const op = "replace events"
	defer observeDB(ctx, "db.events.replace_all")()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteAllEventsSQL); err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("clear events: %w", err)}
	}
	for i, event := range events {
		if err := upsertEvent(ctx, tx, event); err != nil {
			return &StoreError{Op: op, Err: fmt.Errorf("row %d: %w", i, err)}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (r *eventRepo) SweepExpired(ctx context.Context, ref time.Time, retentionDays int) (int64, error) {
	defer observeDB(ctx, "db.events.sweep")()
	tag, err := r.pool.Exec(ctx, sweepEventsSQL, RetentionCutoff(ref, retentionDays))
	if err != nil {
		return 0, &StoreError{Op: "sweep expired events", Err: err}
	}
	return tag.RowsAffected(), nil
}

func upsertEvent(ctx context.Context, db execer, event Event) error {
	event, err := normalizeEvent(event)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, upsertEventSQL, event.Date, event.UserName, event.UserColor, event.Time)
	return err
}

func normalizeEvent(event Event) (Event, error) {
	switch {
	case strings.TrimSpace(event.Date) == "":
		return event, fmt.Errorf("%w: date is required", ErrInvalidEvent)
	case strings.TrimSpace(event.UserName) == "":
		return event, fmt.Errorf("%w: user name is required", ErrInvalidEvent)
	case strings.TrimSpace(event.UserColor) == "":
		return event, fmt.Errorf("%w: user color is required", ErrInvalidEvent)
	}
	if event.Time == "" {
		event.Time = DefaultTime
	}
	return event, nil
}
