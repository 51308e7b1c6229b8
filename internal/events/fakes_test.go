package events

import (
	"context"
	"sync"
	"time"

	"github.com/jw6ventures/dispo/internal/store"
)

type fakeInitializer struct {
	err   error
	calls int
	log   *[]string
}

func (f *fakeInitializer) Initialize(ctx context.Context) error {
	f.calls++
	if f.log != nil {
		*f.log = append(*f.log, "initialize")
	}
	return f.err
}

// fakeEventRepo keeps rows in memory with the same (date, user) upsert rule as the database.
type fakeEventRepo struct {
	mu         sync.Mutex
	rows       []store.Event
	nextID     int64
	log        *[]string
	listErr    error
	sweepErr   error
	replaceErr error
}

func (f *fakeEventRepo) record(call string) {
	if f.log != nil {
		*f.log = append(*f.log, call)
	}
}

func (f *fakeEventRepo) List(ctx context.Context) ([]store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]store.Event, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

func (f *fakeEventRepo) Upsert(ctx context.Context, event store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upsert")
	f.upsertLocked(event)
	return nil
}

func (f *fakeEventRepo) upsertLocked(event store.Event) {
	if event.Time == "" {
		event.Time = store.DefaultTime
	}
	for i := range f.rows {
		if f.rows[i].Date == event.Date && f.rows[i].UserName == event.UserName {
			f.rows[i].UserColor = event.UserColor
			f.rows[i].Time = event.Time
			return
		}
	}
	f.nextID++
	event.ID = f.nextID
	f.rows = append(f.rows, event)
}

func (f *fakeEventRepo) Delete(ctx context.Context, date, userName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete")
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.Date == date && row.UserName == userName {
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return nil
}

func (f *fakeEventRepo) ReplaceAll(ctx context.Context, events []store.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("replace")
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.rows = nil
	for _, e := range events {
		f.upsertLocked(e)
	}
	return nil
}

func (f *fakeEventRepo) SweepExpired(ctx context.Context, ref time.Time, retentionDays int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("sweep")
	if f.sweepErr != nil {
		return 0, f.sweepErr
	}
	cutoff := store.RetentionCutoff(ref, retentionDays)
	kept := f.rows[:0]
	var removed int64
	for _, row := range f.rows {
		if row.Date < cutoff {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return removed, nil
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}
