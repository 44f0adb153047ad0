// Package repo provides the scans and dupe group repositories
package repo

import (
	"context"
	"database/sql"
	json "encoding/json/v2"
	"errors"
	"time"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	ptime "dupehound/internal/platform/time"
	"dupehound/internal/services/scans/domain"
)

type (
	queries struct{ q repokit.Queryer }
	binder  struct{}
)

// NewStore constructs a repo binder for the embedded database
func NewStore() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &queries{q: q} }

// Storage defines the scans repository
type Storage interface {
	Insert(ctx context.Context, repoID, accountID int64, now time.Time) (domain.Scan, error)
	Get(ctx context.Context, id int64) (domain.Scan, error)
	SetStatus(ctx context.Context, id int64, status string) error
	SetPhaseCursor(ctx context.Context, id int64, cursor *string) error
	SetPRCount(ctx context.Context, id int64, n int) error
	AddTokenUsage(ctx context.Context, id int64, phase string, in, out int64) error
	MarkDone(ctx context.Context, id int64, groupCount int, now time.Time) error
	MarkFailed(ctx context.Context, id int64, errMsg string, now time.Time) error

	ReplaceGroups(ctx context.Context, scanID, repoID int64, groups []domain.GroupWrite) error
	GroupsByScan(ctx context.Context, scanID int64) ([]domain.Group, error)
}

const scanColumns = `id, repo_id, account_id, status, phase_cursor, input_tokens, output_tokens,
	token_usage_breakdown, pr_count, dupe_group_count, error, started_at, completed_at`

// Insert creates a queued scan
func (r *queries) Insert(ctx context.Context, repoID, accountID int64, now time.Time) (domain.Scan, error) {
	const sqlq = `
		INSERT INTO scans (repo_id, account_id, status, started_at)
		VALUES (?, ?, 'queued', ?)
		RETURNING ` + scanColumns
	return scanScan(r.q.QueryRow(ctx, sqlq, repoID, accountID, ptime.Format(now)))
}

// Get fetches one scan
func (r *queries) Get(ctx context.Context, id int64) (domain.Scan, error) {
	const sqlq = `SELECT ` + scanColumns + ` FROM scans WHERE id = ?`
	s, err := scanScan(r.q.QueryRow(ctx, sqlq, id))
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Scan{}, perr.Newf(perr.ErrorCodeNotFound, "scan %d not found", id)
		}
		return domain.Scan{}, err
	}
	return s, nil
}

// SetStatus writes a status; legality is the service's concern
func (r *queries) SetStatus(ctx context.Context, id int64, status string) error {
	return r.exec(ctx, `UPDATE scans SET status = ? WHERE id = ?`, status, id)
}

// SetPhaseCursor checkpoints or clears the async batch marker
func (r *queries) SetPhaseCursor(ctx context.Context, id int64, cursor *string) error {
	var v any
	if cursor != nil {
		v = *cursor
	}
	return r.exec(ctx, `UPDATE scans SET phase_cursor = ? WHERE id = ?`, v, id)
}

// SetPRCount stores the ingested scope size
func (r *queries) SetPRCount(ctx context.Context, id int64, n int) error {
	return r.exec(ctx, `UPDATE scans SET pr_count = ? WHERE id = ?`, n, id)
}

// AddTokenUsage bumps the counters and folds the phase into the breakdown
func (r *queries) AddTokenUsage(ctx context.Context, id int64, phase string, in, out int64) error {
	const sel = `SELECT token_usage_breakdown FROM scans WHERE id = ?`
	var raw string
	if err := r.q.QueryRow(ctx, sel, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return perr.Newf(perr.ErrorCodeNotFound, "scan %d not found", id)
		}
		return perr.FromSQLite(err, "read token usage")
	}

	usage := map[string]domain.PhaseUsage{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &usage); err != nil {
			return perr.Wrap(err, perr.ErrorCodeJSON, "decode token usage")
		}
	}
	u := usage[phase]
	u.InputTokens += in
	u.OutputTokens += out
	usage[phase] = u

	b, err := json.Marshal(usage)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode token usage")
	}

	const upd = `
		UPDATE scans
		   SET input_tokens = input_tokens + ?,
		       output_tokens = output_tokens + ?,
		       token_usage_breakdown = ?
		 WHERE id = ?
	`
	return r.exec(ctx, upd, in, out, string(b), id)
}

// MarkDone finishes a scan
func (r *queries) MarkDone(ctx context.Context, id int64, groupCount int, now time.Time) error {
	const sqlq = `
		UPDATE scans
		   SET status = 'done', dupe_group_count = ?, phase_cursor = NULL, error = NULL, completed_at = ?
		 WHERE id = ?
	`
	return r.exec(ctx, sqlq, groupCount, ptime.Format(now), id)
}

// MarkFailed records the terminal error
func (r *queries) MarkFailed(ctx context.Context, id int64, errMsg string, now time.Time) error {
	const sqlq = `
		UPDATE scans
		   SET status = 'failed', error = ?, completed_at = ?
		 WHERE id = ?
	`
	return r.exec(ctx, sqlq, errMsg, ptime.Format(now), id)
}

func (r *queries) exec(ctx context.Context, sqlq string, args ...any) error {
	tag, err := r.q.Exec(ctx, sqlq, args...)
	if err != nil {
		return perr.FromSQLite(err, "update scan")
	}
	if tag.RowsAffected() == 0 {
		return perr.New(perr.ErrorCodeNotFound, "scan not found")
	}
	return nil
}

func scanScan(row repokit.Row) (domain.Scan, error) {
	var (
		s         domain.Scan
		cursor    *string
		usageRaw  string
		errMsg    *string
		started   string
		completed *string
	)
	if err := row.Scan(
		&s.ID, &s.RepoID, &s.AccountID, &s.Status, &cursor,
		&s.InputTokens, &s.OutputTokens, &usageRaw,
		&s.PRCount, &s.DupeGroupCount, &errMsg, &started, &completed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Scan{}, perr.New(perr.ErrorCodeNotFound, "scan not found")
		}
		return domain.Scan{}, perr.FromSQLite(err, "scan row")
	}

	s.PhaseCursor = cursor
	if errMsg != nil {
		s.Error = *errMsg
	}
	if usageRaw != "" {
		if err := json.Unmarshal([]byte(usageRaw), &s.TokenUsage); err != nil {
			return domain.Scan{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode token usage")
		}
	}
	var err error
	if s.StartedAt, err = ptime.Parse(started); err != nil {
		return domain.Scan{}, perr.Wrap(err, perr.ErrorCodeDB, "decode scan started_at")
	}
	s.CompletedAt = ptime.ParsePtr(completed)
	return s, nil
}
