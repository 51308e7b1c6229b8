package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jw6ventures/dispo/internal/metrics"
	"github.com/jw6ventures/dispo/internal/store"
)

// Initializer prepares the schema before first use. *store.Store implements it.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Service validates event lists and mirrors them into the store.
type Service struct {
	schema        Initializer
	events        store.EventRepository
	retentionDays int
	now           func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithRetentionDays sets how many past days survive each write.
func WithRetentionDays(days int) Option {
	return func(s *Service) { s.retentionDays = days }
}

// WithClock replaces time.Now as the retention reference.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(schema Initializer, events store.EventRepository, opts ...Option) *Service {
	s := &Service{
		schema:        schema,
		events:        events,
		retentionDays: store.DefaultRetentionDays,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEvents returns every stored event. Storage failures are logged and
// answered with an empty list: an empty calendar is preferred to an error page.
func (s *Service) ListEvents(ctx context.Context) []Event {
	if err := s.schema.Initialize(ctx); err != nil {
		s.readFallback(ctx, "initialize store", err)
		return []Event{}
	}
	rows, err := s.events.List(ctx)
	if err != nil {
		s.readFallback(ctx, "list events", err)
		return []Event{}
	}

	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromRow(row))
	}
	return events
}

// ReplaceEvents makes the stored set exactly the submitted list.
//
// The payload is fully validated first; a rejected list never reaches the
// store. Then the schema is ensured, expired rows are swept and the table is
// replaced with every submitted event.
func (s *Service) ReplaceEvents(ctx context.Context, payload json.RawMessage) (Summary, error) {
	events, err := decodeEvents(payload)
	if err != nil {
		metrics.ValidationFailure(failingField(err))
		return Summary{}, err
	}

	rows := make([]store.Event, 0, len(events))
	for _, e := range events {
		rows = append(rows, toRow(e))
	}

	if err := s.schema.Initialize(ctx); err != nil {
		return Summary{}, &WriteError{Op: "initialize store", Err: err}
	}
	swept, err := s.events.SweepExpired(ctx, s.now(), s.retentionDays)
	if err != nil {
		return Summary{}, &WriteError{Op: "sweep expired events", Err: err}
	}
	if err := s.events.ReplaceAll(ctx, rows); err != nil {
		return Summary{}, &WriteError{Op: "replace events", Err: err}
	}

	metrics.EventsExpired(swept)
	metrics.EventsWritten(len(rows))
	logf(ctx, "INFO", "saved %d events (%d swept)", len(rows), swept)

	return Summary{Success: true, Count: len(rows), Expired: int(swept)}, nil
}

func (s *Service) readFallback(ctx context.Context, op string, err error) {
	metrics.ReadFallback()
	logf(ctx, "ERROR", "%s: %v (serving empty event list)", op, err)
}

func failingField(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Field
	case errors.Is(err, ErrMissingPayload):
		return "events"
	default:
		return "shape"
	}
}

func logf(ctx context.Context, level, format string, args ...any) {
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		log.Printf("[%s] RequestID=%s: "+format, append([]any{level, requestID}, args...)...)
		return
	}
	log.Printf("[%s] "+format, append([]any{level}, args...)...)
}
