package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the subset of pgxpool.Pool the store relies on. Tests supply a mock.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool Pool

	Events EventRepository

	initMu      sync.Mutex
	initialized bool
}

// Open creates a connection pool for dsn. Connections are established lazily,
// so an unreachable database surfaces on the first Initialize or query.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: no connection string configured", ErrStoreUnavailable)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return New(pool), nil
}

// New wires concrete repository implementations with shared connection pool.
func New(pool Pool) *Store {
	return &Store{
		pool:   pool,
		Events: &eventRepo{pool: pool},
	}
}

// Close releases every pooled connection.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Initialize makes sure the schema exists. It is safe to call on every request:
// after the first success it returns immediately, and concurrent first calls
// (from this or other processes) are serialized by ApplyMigrations.
func (s *Store) Initialize(ctx context.Context) error {
	const op = "initialize"
	defer observeDB(ctx, "db.initialize")()

	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}
	if s.pool == nil {
		return &StoreError{Op: op, Err: ErrStoreUnavailable}
	}
	if err := s.pool.Ping(ctx); err != nil {
		return &StoreError{Op: op, Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	}
	if err := ApplyMigrations(ctx, s.pool); err != nil {
		return &StoreError{Op: op, Err: err}
	}
	s.initialized = true
	return nil
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	if s.pool == nil {
		return ErrStoreUnavailable
	}
	return s.pool.Ping(ctx)
}
