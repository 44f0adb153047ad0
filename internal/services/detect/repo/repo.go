// Package repo provides the pairwise verification cache repository
package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
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

// CachedPair is one stored verification. Hashes pin the PR contents the
// verdict was computed over; a content change invalidates the row
type CachedPair struct {
	HashA      string
	HashB      string
	ResultJSON string
}

// PairWrite persists one fresh verification keyed by the unordered pair
type PairWrite struct {
	RepoID     int64
	A, B       int
	HashA      string
	HashB      string
	ResultJSON string
	Now        time.Time
}

// Storage is the pairwise cache surface. Callers order pairs before lookup;
// A is always the lower PR number
type Storage interface {
	GetPair(ctx context.Context, repoID int64, a, b int) (*CachedPair, error)
	PutPair(ctx context.Context, w PairWrite) error
}

// GetPair returns nil without error when the pair was never verified
func (r *queries) GetPair(ctx context.Context, repoID int64, a, b int) (*CachedPair, error) {
	const sqlq = `
		SELECT hash_a, hash_b, result_json
		  FROM pairwise_cache
		 WHERE repo_id = ? AND pr_a = ? AND pr_b = ?
	`
	var c CachedPair
	if err := r.q.QueryRow(ctx, sqlq, repoID, a, b).Scan(&c.HashA, &c.HashB, &c.ResultJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, perr.FromSQLite(err, "read pairwise cache")
	}
	return &c, nil
}

// PutPair overwrites any stale verdict for the pair
func (r *queries) PutPair(ctx context.Context, w PairWrite) error {
	const sqlq = `
		INSERT INTO pairwise_cache (repo_id, pr_a, pr_b, hash_a, hash_b, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, pr_a, pr_b) DO UPDATE SET
			hash_a      = excluded.hash_a,
			hash_b      = excluded.hash_b,
			result_json = excluded.result_json,
			created_at  = excluded.created_at
	`
	_, err := r.q.Exec(ctx, sqlq, w.RepoID, w.A, w.B, w.HashA, w.HashB, w.ResultJSON, ptime.Format(w.Now))
	if err != nil {
		return perr.FromSQLite(err, "write pairwise cache")
	}
	return nil
}
