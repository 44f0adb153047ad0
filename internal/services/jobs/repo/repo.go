// Package repo provides the job queue repository over the embedded store
package repo

import (
	"context"
	"database/sql"
	json "encoding/json/v2"
	"errors"
	"time"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	ptime "dupehound/internal/platform/time"
	"dupehound/internal/services/jobs/domain"
)

type (
	queries struct{ q repokit.Queryer }
	binder  struct{}
)

// NewStore constructs a repo binder for the embedded database
func NewStore() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &queries{q: q} }

// Storage defines the job queue repository
type Storage interface {
	Insert(ctx context.Context, j domain.Job) error
	Claim(ctx context.Context, now time.Time) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	MarkDone(ctx context.Context, id string, result map[string]any, now time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, now time.Time) error
	Requeue(ctx context.Context, id string, runAfter time.Time, now time.Time) error
	RequeueRunning(ctx context.Context, now time.Time) (int, error)
}

const jobColumns = `id, type, payload, status, result, error, attempts, max_retries, run_after, created_at, updated_at`

// Insert writes a queued job
func (r *queries) Insert(ctx context.Context, j domain.Job) error {
	payload, err := encodeDoc(j.Payload)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode job payload")
	}
	const sqlq = `
		INSERT INTO jobs (id, type, payload, status, attempts, max_retries, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.q.Exec(ctx, sqlq,
		j.ID, j.Type, payload, j.Status, j.Attempts, j.MaxRetries,
		ptime.FormatPtr(j.RunAfter), ptime.Format(j.CreatedAt), ptime.Format(j.UpdatedAt),
	)
	return perr.FromSQLite(err, "insert job")
}

// Claim transitions the oldest ready job to running in one statement.
// The nested select plus RETURNING keeps the claim serialisable: two
// concurrent callers can never be handed the same row
func (r *queries) Claim(ctx context.Context, now time.Time) (*domain.Job, error) {
	const sqlq = `
		UPDATE jobs
		   SET status = 'running', attempts = attempts + 1, updated_at = ?
		 WHERE id = (
		       SELECT id FROM jobs
		        WHERE status = 'queued' AND (run_after IS NULL OR run_after <= ?)
		        ORDER BY created_at, id
		        LIMIT 1)
		RETURNING ` + jobColumns
	ts := ptime.Format(now)
	j, err := scanJob(r.q.QueryRow(ctx, sqlq, ts, ts))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, perr.FromSQLite(err, "claim job")
	}
	return j, nil
}

// Get fetches a job by id
func (r *queries) Get(ctx context.Context, id string) (*domain.Job, error) {
	const sqlq = `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	j, err := store.One(ctx, r.q, scanJob, sqlq, id)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return nil, perr.Newf(perr.ErrorCodeNotFound, "job %s not found", id)
		}
		return nil, perr.FromSQLite(err, "get job")
	}
	return j, nil
}

// MarkDone records a terminal success
func (r *queries) MarkDone(ctx context.Context, id string, result map[string]any, now time.Time) error {
	doc, err := encodeDoc(result)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode job result")
	}
	const sqlq = `
		UPDATE jobs
		   SET status = 'done', result = ?, error = NULL, run_after = NULL, updated_at = ?
		 WHERE id = ?
	`
	return execOne(ctx, r.q, sqlq, doc, ptime.Format(now), id)
}

// MarkFailed records a terminal failure
func (r *queries) MarkFailed(ctx context.Context, id string, errMsg string, now time.Time) error {
	const sqlq = `
		UPDATE jobs
		   SET status = 'failed', error = ?, run_after = NULL, updated_at = ?
		 WHERE id = ?
	`
	return execOne(ctx, r.q, sqlq, errMsg, ptime.Format(now), id)
}

// Requeue returns a job to queued with a future activation time
func (r *queries) Requeue(ctx context.Context, id string, runAfter time.Time, now time.Time) error {
	const sqlq = `
		UPDATE jobs
		   SET status = 'queued', run_after = ?, updated_at = ?
		 WHERE id = ?
	`
	return execOne(ctx, r.q, sqlq, ptime.Format(runAfter), ptime.Format(now), id)
}

// RequeueRunning flips every running job back to queued and reports how many.
// Called once at startup before the worker loop begins polling
func (r *queries) RequeueRunning(ctx context.Context, now time.Time) (int, error) {
	const sqlq = `
		UPDATE jobs
		   SET status = 'queued', run_after = NULL, updated_at = ?
		 WHERE status = 'running'
	`
	tag, err := r.q.Exec(ctx, sqlq, ptime.Format(now))
	if err != nil {
		return 0, perr.FromSQLite(err, "requeue running jobs")
	}
	return int(tag.RowsAffected()), nil
}

func execOne(ctx context.Context, q repokit.Queryer, sqlq string, args ...any) error {
	tag, err := q.Exec(ctx, sqlq, args...)
	if err != nil {
		return perr.FromSQLite(err, "update job")
	}
	if tag.RowsAffected() == 0 {
		return perr.New(perr.ErrorCodeNotFound, "job not found")
	}
	return nil
}

func encodeDoc(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeDoc(s *string) (map[string]any, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func scanJob(row repokit.Row) (*domain.Job, error) {
	var (
		j        domain.Job
		payload  *string
		result   *string
		errMsg   *string
		runAfter *string
		created  string
		updated  string
	)
	if err := row.Scan(
		&j.ID, &j.Type, &payload, &j.Status, &result, &errMsg,
		&j.Attempts, &j.MaxRetries, &runAfter, &created, &updated,
	); err != nil {
		return nil, err
	}

	var err error
	if j.Payload, err = decodeDoc(payload); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode job payload")
	}
	if j.Result, err = decodeDoc(result); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "decode job result")
	}
	if errMsg != nil {
		j.Error = *errMsg
	}
	j.RunAfter = ptime.ParsePtr(runAfter)
	if j.CreatedAt, err = ptime.Parse(created); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "decode job created_at")
	}
	if j.UpdatedAt, err = ptime.Parse(updated); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "decode job updated_at")
	}
	return &j, nil
}
