package store

import (
	"context"
	"time"
)

// EventRepository handles availability event storage.
type EventRepository interface {
	// List returns every event ordered by date, then creation order.
	List(ctx context.Context) ([]Event, error)
	// Upsert inserts the event or refreshes color and time of the existing (date, user) row.
	Upsert(ctx context.Context, event Event) error
	// Delete removes the (date, user) row if present.
	Delete(ctx context.Context, date, userName string) error
	// ReplaceAll atomically swaps the whole table for events.
	ReplaceAll(ctx context.Context, events []Event) error
	// SweepExpired deletes rows dated before ref minus retentionDays and reports how many went.
	SweepExpired(ctx context.Context, ref time.Time, retentionDays int) (int64, error)
}
