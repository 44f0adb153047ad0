// Package store owns the sqlite backend and the query seams repositories
// run against
package store

import (
	"context"
	"errors"
	"fmt"

	"dupehound/internal/platform/logger"
)

// Store hands out the database seam. The zero value carries no backend and
// every method tolerates that, so tests can construct partial stores
type Store struct {
	// Log is shared with the sqlite client and its guards
	Log logger.Logger

	// DB is nil until Open enables the sqlite backend
	DB TxRunner
}

// Row is the single-row scan contract
type Row interface {
	Scan(dest ...any) error
}

// Rows iterates a result set. Close is idempotent
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
	Columns() []string
}

// CommandTag reports what a write statement did
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repositories bind to. Both the
// pooled connection and an open transaction satisfy it
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner adds transaction scoping on top of RowQuerier. fn runs against
// the transaction; any error rolls it back
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Pinger is satisfied by seams that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open assembles a Store. The sqlite backend dials only when cfg enables it
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// normalize a zero logger so subclients never nil-check
	s.Log = s.Log.With().Logger()

	if cfg.DB.Enabled {
		dbClient, err := openDB(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.DB = dbClient
	}

	return s, nil
}

// Guard pings whichever seams are configured and joins their failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if s.DB != nil {
		if p, ok := any(s.DB).(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("db: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close releases the configured backends; nil seams are skipped
func (s *Store) Close(context.Context) error {
	var errs []error

	if c, ok := s.DB.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	return errors.Join(errs...)
}
