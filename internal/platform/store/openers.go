package store

import (
	"context"
	"fmt"
	"time"

	"dupehound/internal/platform/store/sqlite"
)

// openDB opens the embedded database, waits for it to become writable, and
// bootstraps the schema before publishing the adapter
func openDB(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer sqlite.QueryTracer
	if cfg.DB.LogSQL {
		tracer = sqlite.Tracer(s.Log)
	}

	d, err := sqlite.Open(ctx, sqlite.Config{
		Path:        cfg.DB.Path,
		MaxConns:    cfg.DB.MaxConns,
		SlowQuery:   time.Duration(cfg.DB.SlowQueryMs) * time.Millisecond,
		BusyTimeout: cfg.DB.BusyTimeout,
		JournalMode: cfg.DB.JournalMode,
	}, tracer)
	if err != nil {
		return nil, err
	}

	// Connection guardrails: ping with retry/backoff using the pool directly.
	// A freshly created file is ready immediately; a file held by a dying
	// writer can take a moment to release the WAL lock.
	const (
		maxAttempts    = 20
		backoffStart   = 150 * time.Millisecond
		backoffCeiling = 2 * time.Second
	)
	pingTimeout := cfg.DB.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}

	var lastErr error
	backoff := backoffStart
	for i := 0; i < maxAttempts; i++ {
		toCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		lastErr = d.SQL.PingContext(toCtx)
		cancel()

		if lastErr == nil {
			if err := sqlite.EnsureSchema(ctx, d.SQL); err != nil {
				d.Close()
				return nil, fmt.Errorf("sqlite schema bootstrap: %w", err)
			}
			a := newDBAdapter(d) // publish adapter only after the file is healthy
			s.DB = a
			return a, nil
		}
		if ctx.Err() != nil {
			d.Close()
			return nil, ctx.Err()
		}
		time.Sleep(backoff)
		if backoff < backoffCeiling {
			backoff *= 2
			if backoff > backoffCeiling {
				backoff = backoffCeiling
			}
		}
	}

	d.Close()
	return nil, fmt.Errorf("sqlite ping failed after %d attempts: %w", maxAttempts, lastErr)
}
