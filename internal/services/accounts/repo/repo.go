// Package repo provides the accounts repository
package repo

import (
	"context"
	"time"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	ptime "dupehound/internal/platform/time"
)

type (
	queries struct{ q repokit.Queryer }
	binder  struct{}
)

// NewStore constructs a repo binder for the embedded database
func NewStore() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &queries{q: q} }

// Row is the raw account row; config stays encoded here and is parsed by
// the service so validation has one home
type Row struct {
	ID        int64
	APIKey    string
	Label     string
	ConfigRaw string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Storage defines the accounts repository
type Storage interface {
	Insert(ctx context.Context, apiKey, label, configRaw string, now time.Time) (int64, error)
	GetByID(ctx context.Context, id int64) (Row, error)
	GetByAPIKey(ctx context.Context, key string) (Row, error)
}

// Insert writes an account and returns its id
func (r *queries) Insert(ctx context.Context, apiKey, label, configRaw string, now time.Time) (int64, error) {
	const sqlq = `
		INSERT INTO accounts (api_key, label, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	ts := ptime.Format(now)
	id, err := store.Scalar[int64](ctx, r.q, sqlq, apiKey, label, configRaw, ts, ts)
	if err != nil {
		return 0, perr.FromSQLite(err, "insert account")
	}
	return id, nil
}

// GetByID fetches one account row
func (r *queries) GetByID(ctx context.Context, id int64) (Row, error) {
	const sqlq = `SELECT id, api_key, COALESCE(label, ''), config, created_at, updated_at FROM accounts WHERE id = ?`
	return r.one(ctx, sqlq, id)
}

// GetByAPIKey fetches one account row by its key
func (r *queries) GetByAPIKey(ctx context.Context, key string) (Row, error) {
	const sqlq = `SELECT id, api_key, COALESCE(label, ''), config, created_at, updated_at FROM accounts WHERE api_key = ?`
	return r.one(ctx, sqlq, key)
}

func (r *queries) one(ctx context.Context, sqlq string, arg any) (Row, error) {
	out, err := store.One(ctx, r.q, scanAccount, sqlq, arg)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return Row{}, perr.New(perr.ErrorCodeNotFound, "account not found")
		}
		return Row{}, perr.FromSQLite(err, "get account")
	}
	return out, nil
}

func scanAccount(row repokit.Row) (Row, error) {
	var (
		out              Row
		created, updated string
	)
	if err := row.Scan(&out.ID, &out.APIKey, &out.Label, &out.ConfigRaw, &created, &updated); err != nil {
		return Row{}, perr.FromSQLite(err, "scan account row")
	}
	var err error
	if out.CreatedAt, err = ptime.Parse(created); err != nil {
		return Row{}, perr.Wrap(err, perr.ErrorCodeDB, "decode account created_at")
	}
	if out.UpdatedAt, err = ptime.Parse(updated); err != nil {
		return Row{}, perr.Wrap(err, perr.ErrorCodeDB, "decode account updated_at")
	}
	return out, nil
}
