package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jw6ventures/dispo/internal/migrations"
)

// migrationLockKey identifies the advisory lock serializing schema setup
// across processes sharing the database.
const migrationLockKey int64 = 0x646973706f

// TxBeginner is the subset of pgxpool.Pool used by ApplyMigrations.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ApplyMigrations ensures all embedded SQL migrations have been applied.
//
// Everything runs in one transaction holding a Postgres advisory lock, so two
// servers starting against an empty database cannot both create the schema.
// Each migration is checked against schema_migrations before it runs. An
// events table that predates migration tracking is adopted: the first
// migration is recorded as applied and only newer ones execute.
func ApplyMigrations(ctx context.Context, pool TxBeginner) error {
	migrationNames, err := listMigrationFiles()
	if err != nil {
		return err
	}
	if len(migrationNames) == 0 {
		return nil
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin migrations: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}

	hasTable, err := tableExists(ctx, tx, "schema_migrations")
	if err != nil {
		return err
	}

	if !hasTable {
		legacy, err := tableExists(ctx, tx, "events")
		if err != nil {
			return err
		}

		if err := ensureMigrationTable(ctx, tx); err != nil {
			return err
		}

		if legacy {
			if err := recordMigration(ctx, tx, migrationNames[0]); err != nil {
				return err
			}
		}
	}

	for _, name := range migrationNames {
		applied, err := migrationApplied(ctx, tx, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := applyMigration(ctx, tx, name); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrations.Files, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func tableExists(ctx context.Context, q querier, table string) (bool, error) {
	const sql = `SELECT EXISTS (
        SELECT 1 FROM information_schema.tables
        WHERE table_schema = current_schema() AND table_name = $1
)`
	var exists bool
	if err := q.QueryRow(ctx, sql, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return exists, nil
}

func ensureMigrationTable(ctx context.Context, q querier) error {
	const sql = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := q.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func migrationApplied(ctx context.Context, q querier, name string) (bool, error) {
	const sql = `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version=$1)`
	var exists bool
	if err := q.QueryRow(ctx, sql, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return exists, nil
}

func applyMigration(ctx context.Context, q querier, name string) error {
	contents, err := migrations.Files.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	if _, err := q.Exec(ctx, string(contents)); err != nil {
		return fmt.Errorf("apply migration %s: %w", name, err)
	}
	return recordMigration(ctx, q, name)
}

func recordMigration(ctx context.Context, q querier, name string) error {
	const sql = `INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`
	if _, err := q.Exec(ctx, sql, name); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	return nil
}
