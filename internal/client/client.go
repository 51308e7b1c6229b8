// Package client keeps a local mirror of the shared event list and mutates
// it through full-list replacement on the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jw6ventures/dispo/internal/events"
	httperrors "github.com/jw6ventures/dispo/internal/http/errors"
	"github.com/jw6ventures/dispo/internal/store"
)

var (
	// ErrLocalPrecondition is returned before any request is made when the
	// arguments cannot describe an event.
	ErrLocalPrecondition = errors.New("client: date and user name are required")
	// ErrBusy is returned when a load or change is requested while a change
	// is in flight, or a change while a load is.
	ErrBusy = errors.New("client: another request is still in flight")
	// ErrRejected matches remote errors caused by an invalid submission.
	ErrRejected = errors.New("client: server rejected the event list")
	// ErrWriteFailed matches remote errors caused by a storage failure.
	ErrWriteFailed = errors.New("client: server failed to save events")
)

const (
	maxResponseBytes = 4 << 20
	loadTimeout      = 15 * time.Second
)

// State is the lifecycle of the mirrored list.
type State int

const (
	StateLoading State = iota
	StateIdle
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RemoteError is a non-success answer from the event service.
type RemoteError struct {
	Status  int
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		return fmt.Sprintf("server returned %d: %s (%s)", e.Status, msg, e.Details)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, msg)
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.Status == http.StatusBadRequest
	case ErrWriteFailed:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// Option customizes a Cache.
type Option func(*Cache)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Cache) {
		c.http = hc
	}
}

// Cache mirrors the server's event list. The local list only changes after
// the server acknowledged the new version.
type Cache struct {
	baseURL string
	http    *http.Client

	loads singleflight.Group
	write sync.Mutex

	mu      sync.RWMutex
	events  []events.Event
	state   State
	message string
}

// New returns a cache in the Loading state. Call Load to populate it.
func New(baseURL string, opts ...Option) *Cache {
	c := &Cache{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		events:  []events.Event{},
		state:   StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Events returns a copy of the current list.
func (c *Cache) Events() []events.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]events.Event{}, c.events...)
}

func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Message is the error recorded by the last failed operation, if any.
func (c *Cache) Message() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.message
}

// Load fetches the server list. Concurrent calls share one request, which
// is detached from the first caller's cancellation and bounded by
// loadTimeout instead; each caller still stops waiting when its own ctx ends.
// Load fails with ErrBusy while a change is in flight. On failure the visible
// list is reset to empty.
func (c *Cache) Load(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)
	ch := c.loads.DoChan("load", func() (any, error) {
		if !c.write.TryLock() {
			return nil, ErrBusy
		}
		defer c.write.Unlock()

		c.mu.Lock()
		c.state = StateLoading
		c.mu.Unlock()

		reqCtx, cancel := context.WithTimeout(detached, loadTimeout)
		defer cancel()

		var body struct {
			Events []events.Event `json:"events"`
		}
		if err := c.do(reqCtx, http.MethodGet, nil, &body); err != nil {
			c.fail(err, true)
			return nil, err
		}
		if body.Events == nil {
			body.Events = []events.Event{}
		}
		c.commit(body.Events)
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("load events: %w", res.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("load events: %w", ctx.Err())
	}
}

// Add appends ev to the list and submits the result. A same-day entry for the
// same user is not checked for; the server keeps one row per pair.
func (c *Cache) Add(ctx context.Context, ev events.Event) error {
	if strings.TrimSpace(ev.Date) == "" || strings.TrimSpace(ev.User.Name) == "" {
		return ErrLocalPrecondition
	}
	if ev.Time == "" {
		ev.Time = store.DefaultTime
	}
	if !c.write.TryLock() {
		return ErrBusy
	}
	defer c.write.Unlock()

	next := append(c.Events(), ev)
	if err := c.replace(ctx, next); err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// Remove drops every entry of userName on date and submits the result.
func (c *Cache) Remove(ctx context.Context, date, userName string) error {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(userName) == "" {
		return ErrLocalPrecondition
	}
	if !c.write.TryLock() {
		return ErrBusy
	}
	defer c.write.Unlock()

	current := c.Events()
	next := make([]events.Event, 0, len(current))
	for _, e := range current {
		if e.Date == date && e.User.Name == userName {
			continue
		}
		next = append(next, e)
	}
	if err := c.replace(ctx, next); err != nil {
		return fmt.Errorf("remove event: %w", err)
	}
	return nil
}

func (c *Cache) replace(ctx context.Context, next []events.Event) error {
	payload := struct {
		Events []events.Event `json:"events"`
	}{Events: next}

	var summary events.Summary
	if err := c.do(ctx, http.MethodPost, payload, &summary); err != nil {
		c.fail(err, false)
		return err
	}
	c.commit(next)
	return nil
}

func (c *Cache) commit(list []events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = list
	c.state = StateIdle
	c.message = ""
}

func (c *Cache) fail(err error, reset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reset {
		c.events = []events.Event{}
	}
	c.state = StateFailed
	c.message = err.Error()
}

func (c *Cache) do(ctx context.Context, method string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/events", body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.RequestIDHeader, uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		remote := &RemoteError{Status: resp.StatusCode}
		var eb httperrors.ErrorBody
		if json.Unmarshal(raw, &eb) == nil {
			remote.Message = eb.Error
			remote.Details = eb.Details
		}
		return remote
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
