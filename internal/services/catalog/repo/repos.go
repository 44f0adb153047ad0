// Package repo provides the catalog repositories
package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	ptime "dupehound/internal/platform/time"
	"dupehound/internal/services/catalog/domain"
)

type (
	queries struct{ q repokit.Queryer }
	binder  struct{}
)

// NewStore constructs a repo binder for the embedded database
func NewStore() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &queries{q: q} }

// Storage defines the catalog repository (repos + prs)
type Storage interface {
	UpsertRepo(ctx context.Context, owner, name string, now time.Time) (domain.Repo, error)
	GetRepo(ctx context.Context, id int64) (domain.Repo, error)
	ListRepos(ctx context.Context) ([]domain.Repo, error)
	SetLastScanAt(ctx context.Context, id int64, at time.Time) error

	UpsertPR(ctx context.Context, up domain.PRUpsert) (int64, error)
	PRsByRepo(ctx context.Context, repoID int64) ([]domain.PR, error)
	PRsByNumbers(ctx context.Context, repoID int64, numbers []int) ([]domain.PR, error)
	PRByNumber(ctx context.Context, repoID int64, number int) (domain.PR, error)
	SetIntentSummary(ctx context.Context, prID int64, summary string) error
	SetEmbedHash(ctx context.Context, prID int64, hash string) error
}

const repoColumns = `id, owner, name, created_at, last_scan_at`

// UpsertRepo registers owner/name; the conflict arm is a no-op update so
// RETURNING fires on both paths
func (r *queries) UpsertRepo(ctx context.Context, owner, name string, now time.Time) (domain.Repo, error) {
	const sqlq = `
		INSERT INTO repos (owner, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (owner, name) DO UPDATE SET owner = excluded.owner
		RETURNING ` + repoColumns
	rep, err := scanRepo(r.q.QueryRow(ctx, sqlq, owner, name, ptime.Format(now)))
	if err != nil {
		return domain.Repo{}, perr.FromSQLite(err, "upsert repo")
	}
	return rep, nil
}

// GetRepo fetches one repo
func (r *queries) GetRepo(ctx context.Context, id int64) (domain.Repo, error) {
	const sqlq = `SELECT ` + repoColumns + ` FROM repos WHERE id = ?`
	rep, err := store.One(ctx, r.q, scanRepo, sqlq, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Repo{}, perr.Newf(perr.ErrorCodeNotFound, "repo %d not found", id)
		}
		return domain.Repo{}, perr.FromSQLite(err, "get repo")
	}
	return rep, nil
}

// ListRepos returns all tracked repos, oldest first
func (r *queries) ListRepos(ctx context.Context) ([]domain.Repo, error) {
	const sqlq = `SELECT ` + repoColumns + ` FROM repos ORDER BY id`
	out, err := store.Many(ctx, r.q, scanRepo, sqlq)
	if err != nil {
		return nil, perr.FromSQLite(err, "list repos")
	}
	return out, nil
}

// SetLastScanAt stamps the most recent completed scan
func (r *queries) SetLastScanAt(ctx context.Context, id int64, at time.Time) error {
	const sqlq = `UPDATE repos SET last_scan_at = ? WHERE id = ?`
	tag, err := r.q.Exec(ctx, sqlq, ptime.Format(at), id)
	if err != nil {
		return perr.FromSQLite(err, "set last_scan_at")
	}
	if tag.RowsAffected() == 0 {
		return perr.Newf(perr.ErrorCodeNotFound, "repo %d not found", id)
	}
	return nil
}

func scanRepo(row repokit.Row) (domain.Repo, error) {
	var (
		rep      domain.Repo
		created  string
		lastScan *string
	)
	if err := row.Scan(&rep.ID, &rep.Owner, &rep.Name, &created, &lastScan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Repo{}, err
		}
		return domain.Repo{}, perr.FromSQLite(err, "scan repo row")
	}
	var err error
	if rep.CreatedAt, err = ptime.Parse(created); err != nil {
		return domain.Repo{}, perr.Wrap(err, perr.ErrorCodeDB, "decode repo created_at")
	}
	rep.LastScanAt = ptime.ParsePtr(lastScan)
	return rep, nil
}
