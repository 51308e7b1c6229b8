package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/dispo/internal/events"
	"github.com/jw6ventures/dispo/internal/store"
)

var errOutage = errors.New("connection refused")

type noopSchema struct{}

func (noopSchema) Initialize(ctx context.Context) error { return nil }

// memoryRepo keeps one row per (date, user name) like the real table.
type memoryRepo struct {
	mu        sync.Mutex
	rows      []store.Event
	failList  bool
	failWrite bool
}

func (m *memoryRepo) List(ctx context.Context) ([]store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errOutage
	}
	return append([]store.Event{}, m.rows...), nil
}

func (m *memoryRepo) Upsert(ctx context.Context, e store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(e)
	return nil
}

func (m *memoryRepo) upsertLocked(e store.Event) {
	for i := range m.rows {
		if m.rows[i].Date == e.Date && m.rows[i].UserName == e.UserName {
			m.rows[i].UserColor = e.UserColor
			m.rows[i].Time = e.Time
			return
		}
	}
	m.rows = append(m.rows, e)
}

func (m *memoryRepo) Delete(ctx context.Context, date, userName string) error { return nil }

func (m *memoryRepo) ReplaceAll(ctx context.Context, rows []store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return errOutage
	}
	m.rows = nil
	for _, r := range rows {
		m.upsertLocked(r)
	}
	return nil
}

func (m *memoryRepo) SweepExpired(ctx context.Context, ref time.Time, days int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := store.RetentionCutoff(ref, days)
	kept := m.rows[:0]
	var removed int64
	for _, row := range m.rows {
		if row.Date < cutoff {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return removed, nil
}

func (m *memoryRepo) setFailures(list, write bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failList = list
	m.failWrite = write
}

type testServer struct {
	*httptest.Server
	repo     *memoryRepo
	requests atomic.Int32
	gets     atomic.Int32
	// getStatus, when non-zero, replaces every GET answer.
	getStatus atomic.Int32
	requestID atomic.Value
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{repo: &memoryRepo{}}
	svc := events.NewService(noopSchema{}, ts.repo, events.WithClock(func() time.Time {
		return time.Date(2024, 6, 2, 8, 0, 0, 0, time.UTC)
	}))
	h := events.NewHandler(svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ts.requests.Add(1)
			ts.requestID.Store(r.Header.Get("X-Request-Id"))
			if r.Method == http.MethodGet {
				ts.gets.Add(1)
				if status := ts.getStatus.Load(); status != 0 {
					http.Error(w, "unavailable", int(status))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/events", h.List)
	r.Post("/events", h.Replace)

	ts.Server = httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) seed(rows ...store.Event) {
	ts.repo.mu.Lock()
	defer ts.repo.mu.Unlock()
	ts.repo.rows = append(ts.repo.rows, rows...)
}

func (ts *testServer) stored() []store.Event {
	ts.repo.mu.Lock()
	defer ts.repo.mu.Unlock()
	return append([]store.Event{}, ts.repo.rows...)
}
