package migrations

import "embed"

// Files contains the event store schema, applied in lexical order
// (001_events.sql, 002_event_time.sql, ...).
//
//go:embed *.sql
var Files embed.FS
