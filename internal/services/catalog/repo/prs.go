package repo

import (
	"context"
	json "encoding/json/v2"
	"strings"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	pstrings "dupehound/internal/platform/strings"
	ptime "dupehound/internal/platform/time"
	"dupehound/internal/services/catalog/domain"
)

const prColumns = `id, repo_id, number, title, body, author, diff_hash, file_paths, state,
	github_etag, embed_hash, intent_summary, created_at, updated_at`

// UpsertPR inserts or refreshes one PR's metadata. The conflict arm leaves
// embed_hash and intent_summary alone: those are detection checkpoints owned
// by the detect stage
func (r *queries) UpsertPR(ctx context.Context, up domain.PRUpsert) (int64, error) {
	paths, err := json.Marshal(up.FilePaths)
	if err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeJSON, "encode file paths")
	}
	if up.FilePaths == nil {
		paths = []byte("[]")
	}

	const sqlq = `
		INSERT INTO prs (repo_id, number, title, body, author, diff_hash, file_paths, state,
			github_etag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (repo_id, number) DO UPDATE SET
			title       = excluded.title,
			body        = excluded.body,
			author      = excluded.author,
			diff_hash   = excluded.diff_hash,
			file_paths  = excluded.file_paths,
			state       = excluded.state,
			github_etag = excluded.github_etag,
			updated_at  = excluded.updated_at
		RETURNING id
	`
	id, err := store.Scalar[int64](ctx, r.q, sqlq,
		up.RepoID, up.Number, up.Title, up.Body, up.Author,
		pstrings.SQLNullPtr(up.DiffHash), string(paths), up.State, pstrings.SQLNullPtr(up.ETag),
		ptime.Format(up.CreatedAt), ptime.Format(up.UpdatedAt),
	)
	if err != nil {
		return 0, perr.FromSQLite(err, "upsert pr")
	}
	return id, nil
}

// PRsByRepo returns every cached PR for a repo ordered by number
func (r *queries) PRsByRepo(ctx context.Context, repoID int64) ([]domain.PR, error) {
	const sqlq = `SELECT ` + prColumns + ` FROM prs WHERE repo_id = ? ORDER BY number`
	out, err := store.Many(ctx, r.q, scanPR, sqlq, repoID)
	if err != nil {
		return nil, perr.FromSQLite(err, "prs by repo")
	}
	return out, nil
}

// PRsByNumbers returns the subset of numbers that exist locally, ordered by
// number. Unknown numbers are simply absent from the result
func (r *queries) PRsByNumbers(ctx context.Context, repoID int64, numbers []int) ([]domain.PR, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteString(`SELECT ` + prColumns + ` FROM prs WHERE repo_id = ? AND number IN (`)
	args := make([]any, 0, len(numbers)+1)
	args = append(args, repoID)
	for i, n := range numbers {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('?')
		args = append(args, n)
	}
	sb.WriteString(`) ORDER BY number`)

	out, err := store.Many(ctx, r.q, scanPR, sb.String(), args...)
	if err != nil {
		return nil, perr.FromSQLite(err, "prs by numbers")
	}
	return out, nil
}

// PRByNumber fetches one PR
func (r *queries) PRByNumber(ctx context.Context, repoID int64, number int) (domain.PR, error) {
	const sqlq = `SELECT ` + prColumns + ` FROM prs WHERE repo_id = ? AND number = ?`
	pr, err := store.One(ctx, r.q, scanPR, sqlq, repoID, number)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.PR{}, perr.Newf(perr.ErrorCodeNotFound, "pr %d not found in repo %d", number, repoID)
		}
		return domain.PR{}, perr.FromSQLite(err, "pr by number")
	}
	return pr, nil
}

// SetIntentSummary checkpoints the extracted intent for one PR
func (r *queries) SetIntentSummary(ctx context.Context, prID int64, summary string) error {
	return r.updatePRField(ctx, `UPDATE prs SET intent_summary = ? WHERE id = ?`, summary, prID)
}

// SetEmbedHash records the proof that stored vectors match this content hash
func (r *queries) SetEmbedHash(ctx context.Context, prID int64, hash string) error {
	return r.updatePRField(ctx, `UPDATE prs SET embed_hash = ? WHERE id = ?`, hash, prID)
}

func (r *queries) updatePRField(ctx context.Context, sqlq string, args ...any) error {
	tag, err := r.q.Exec(ctx, sqlq, args...)
	if err != nil {
		return perr.FromSQLite(err, "update pr")
	}
	if tag.RowsAffected() == 0 {
		return perr.New(perr.ErrorCodeNotFound, "pr not found")
	}
	return nil
}

func scanPR(row repokit.Row) (domain.PR, error) {
	var (
		pr               domain.PR
		body             *string
		diffHash         *string
		paths            string
		etag             *string
		embedHash        *string
		intent           *string
		created, updated string
	)
	if err := row.Scan(
		&pr.ID, &pr.RepoID, &pr.Number, &pr.Title, &body, &pr.Author,
		&diffHash, &paths, &pr.State, &etag, &embedHash, &intent,
		&created, &updated,
	); err != nil {
		return domain.PR{}, perr.FromSQLite(err, "scan pr row")
	}

	pr.Body = pstrings.Deref(body)
	pr.DiffHash = pstrings.Deref(diffHash)
	pr.GitHubETag = pstrings.Deref(etag)
	pr.EmbedHash = pstrings.Deref(embedHash)
	pr.IntentSummary = pstrings.Deref(intent)
	if err := json.Unmarshal([]byte(paths), &pr.FilePaths); err != nil {
		return domain.PR{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode file paths")
	}

	var err error
	if pr.CreatedAt, err = ptime.Parse(created); err != nil {
		return domain.PR{}, perr.Wrap(err, perr.ErrorCodeDB, "decode pr created_at")
	}
	if pr.UpdatedAt, err = ptime.Parse(updated); err != nil {
		return domain.PR{}, perr.Wrap(err, perr.ErrorCodeDB, "decode pr updated_at")
	}
	return pr, nil
}
