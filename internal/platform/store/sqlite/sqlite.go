// Package sqlite provides the embedded SQLite client over database/sql with optional query tracing
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	// driver registration
	_ "github.com/mattn/go-sqlite3"
)

// Config configures the embedded database file
type Config struct {
	Path        string
	MaxConns    int
	BusyTimeout time.Duration

	// SlowQuery marks statements at or above this duration as slow in trace
	// events. Zero disables the flag
	SlowQuery time.Duration

	// JournalMode overrides the WAL default. WAL is wrong on some network
	// filesystems, so operators can fall back to DELETE or TRUNCATE
	JournalMode string
}

// DB is an embedded sqlite client with optional tracer
type DB struct {
	SQL       *sql.DB
	Tracer    QueryTracer
	SlowQuery time.Duration
}

var openSQL = sql.Open

// DSN builds a file DSN enabling journaling, foreign keys, and a busy timeout.
// journal falls back to WAL when empty
func DSN(path string, busy time.Duration, journal string) string {
	if busy <= 0 {
		busy = 5 * time.Second
	}
	if journal == "" {
		journal = "WAL"
	}
	q := url.Values{}
	q.Set("_journal_mode", journal)
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", fmt.Sprintf("%d", busy.Milliseconds()))
	return "file:" + path + "?" + q.Encode()
}

// Open creates a new DB client over the given file with the given config and optional tracer
func Open(_ context.Context, cfg Config, tracer QueryTracer) (*DB, error) {
	db, err := openSQL("sqlite3", DSN(cfg.Path, cfg.BusyTimeout, cfg.JournalMode))
	if err != nil {
		return nil, err
	}

	// WAL allows many readers but a single writer; a small pool keeps
	// contention on the write lock short
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	return &DB{
		SQL:       db,
		Tracer:    tracer,
		SlowQuery: cfg.SlowQuery,
	}, nil
}

// Close closes the underlying pool
func (d *DB) Close() {
	if d != nil && d.SQL != nil {
		_ = d.SQL.Close()
	}
}
