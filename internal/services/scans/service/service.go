// Package service implements the scan lifecycle and the pipeline processors
package service

import (
	"context"
	"time"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	catalog "dupehound/internal/services/catalog/domain"
	jobs "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/scans/domain"
	"dupehound/internal/services/scans/repo"
)

// Service implements domain.ScansPort and domain.GroupsPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	Queue  jobs.QueuePort
	Repos  catalog.ReposPort

	// now is a clock seam for tests
	now func() time.Time
}

// New constructs the scans service
func New(db repokit.TxRunner, b repokit.Binder[repo.Storage], queue jobs.QueuePort, repos catalog.ReposPort) *Service {
	return &Service{DB: db, Binder: b, Queue: queue, Repos: repos, now: time.Now}
}

// Start implements domain.ScansPort. The scan row is created queued and the
// orchestrator job carries everything the pipeline needs, so a worker on any
// process can pick it up
func (s *Service) Start(ctx context.Context, in domain.StartInput) (domain.Started, error) {
	rp, err := s.Repos.Get(ctx, in.RepoID)
	if err != nil {
		return domain.Started{}, err
	}

	scan, err := s.Binder.Bind(s.DB).Insert(ctx, in.RepoID, in.AccountID, s.now().UTC())
	if err != nil {
		return domain.Started{}, err
	}

	payload, err := domain.EncodePayload(domain.ScanJobPayload{
		ScanID:    scan.ID,
		RepoID:    in.RepoID,
		AccountID: in.AccountID,
		Owner:     rp.Owner,
		Repo:      rp.Name,
		MaxPRs:    in.MaxPRs,
	})
	if err != nil {
		return domain.Started{}, err
	}

	jobID, err := s.Queue.Enqueue(ctx, jobs.NewJob{Type: domain.JobTypeScan, Payload: payload})
	if err != nil {
		return domain.Started{}, err
	}
	return domain.Started{ScanID: scan.ID, JobID: jobID}, nil
}

// Get implements domain.ScansPort
func (s *Service) Get(ctx context.Context, id int64) (domain.Scan, error) {
	return s.Binder.Bind(s.DB).Get(ctx, id)
}

// Transition implements domain.ScansPort
func (s *Service) Transition(ctx context.Context, id int64, to string) error {
	cur, err := s.Binder.Bind(s.DB).Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.ValidTransition(cur.Status, to) {
		return perr.Newf(perr.ErrorCodeConflict, "scan %d: cannot move from %s to %s", id, cur.Status, to)
	}
	return s.Binder.Bind(s.DB).SetStatus(ctx, id, to)
}

// SetPhaseCursor implements domain.ScansPort
func (s *Service) SetPhaseCursor(ctx context.Context, id int64, cursor *string) error {
	return s.Binder.Bind(s.DB).SetPhaseCursor(ctx, id, cursor)
}

// SetPRCount implements domain.ScansPort
func (s *Service) SetPRCount(ctx context.Context, id int64, n int) error {
	return s.Binder.Bind(s.DB).SetPRCount(ctx, id, n)
}

// AddTokenUsage implements domain.ScansPort
func (s *Service) AddTokenUsage(ctx context.Context, id int64, phase string, in, out int64) error {
	return s.Binder.Bind(s.DB).AddTokenUsage(ctx, id, phase, in, out)
}

// MarkDone implements domain.ScansPort
func (s *Service) MarkDone(ctx context.Context, id int64, groupCount int) error {
	return s.Binder.Bind(s.DB).MarkDone(ctx, id, groupCount, s.now().UTC())
}

// MarkFailed implements domain.ScansPort
func (s *Service) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return s.Binder.Bind(s.DB).MarkFailed(ctx, id, errMsg, s.now().UTC())
}

// Replace implements domain.GroupsPort
func (s *Service) Replace(ctx context.Context, scanID, repoID int64, groups []domain.GroupWrite) error {
	return s.DB.Tx(ctx, func(q repokit.Queryer) error {
		return s.Binder.Bind(q).ReplaceGroups(ctx, scanID, repoID, groups)
	})
}

// ListByScan implements domain.GroupsPort
func (s *Service) ListByScan(ctx context.Context, scanID int64) ([]domain.Group, error) {
	return s.Binder.Bind(s.DB).GroupsByScan(ctx, scanID)
}
