// Package service implements the durable job queue
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/jobs/repo"
)

// Config for the job queue service
type Config struct {
	// DefaultMaxRetries applies when NewJob.MaxRetries <= 0; defaults to 3
	DefaultMaxRetries int
}

// Service implements domain.QueuePort over the embedded store
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	Cfg    Config

	// now is a clock seam for tests
	now func() time.Time
}

// New constructs the job queue service
func New(db repokit.TxRunner, b repokit.Binder[repo.Storage], cfg Config) *Service {
	if cfg.DefaultMaxRetries <= 0 {
		cfg.DefaultMaxRetries = 3
	}
	return &Service{DB: db, Binder: b, Cfg: cfg, now: time.Now}
}

// Enqueue implements domain.QueuePort
func (s *Service) Enqueue(ctx context.Context, in domain.NewJob) (string, error) {
	if in.Type == "" {
		return "", perr.New(perr.ErrorCodeInvalidArgument, "job type required")
	}
	maxRetries := in.MaxRetries
	if maxRetries <= 0 {
		maxRetries = s.Cfg.DefaultMaxRetries
	}
	now := s.now().UTC()
	j := domain.Job{
		ID:         uuid.NewString(),
		Type:       in.Type,
		Payload:    in.Payload,
		Status:     domain.StatusQueued,
		MaxRetries: maxRetries,
		RunAfter:   in.RunAfter,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Binder.Bind(s.DB).Insert(ctx, j); err != nil {
		return "", err
	}
	return j.ID, nil
}

// Dequeue implements domain.QueuePort. The claim is a single statement so
// concurrent pollers never receive the same job
func (s *Service) Dequeue(ctx context.Context) (*domain.Job, error) {
	return s.Binder.Bind(s.DB).Claim(ctx, s.now())
}

// Complete implements domain.QueuePort
func (s *Service) Complete(ctx context.Context, id string, result map[string]any) error {
	return s.Binder.Bind(s.DB).MarkDone(ctx, id, result, s.now())
}

// Fail implements domain.QueuePort
func (s *Service) Fail(ctx context.Context, id string, errMsg string) error {
	return s.Binder.Bind(s.DB).MarkFailed(ctx, id, errMsg, s.now())
}

// Pause implements domain.QueuePort
func (s *Service) Pause(ctx context.Context, id string, runAfter time.Time) error {
	return s.Binder.Bind(s.DB).Requeue(ctx, id, runAfter, s.now())
}

// Get implements domain.QueuePort
func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.Binder.Bind(s.DB).Get(ctx, id)
}

// RecoverRunningJobs implements domain.QueuePort
func (s *Service) RecoverRunningJobs(ctx context.Context) (int, error) {
	return s.Binder.Bind(s.DB).RequeueRunning(ctx, s.now())
}
