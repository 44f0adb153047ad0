// Package service implements the catalog over the embedded store
package service

import (
	"context"
	"time"

	"dupehound/internal/modkit/repokit"
	"dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/catalog/repo"
)

// Service implements domain.ReposPort and domain.PRsPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]

	// now is a clock seam for tests
	now func() time.Time
}

// New constructs the catalog service
func New(db repokit.TxRunner, b repokit.Binder[repo.Storage]) *Service {
	return &Service{DB: db, Binder: b, now: time.Now}
}

// Track implements domain.ReposPort
func (s *Service) Track(ctx context.Context, owner, name string) (domain.Repo, error) {
	return s.Binder.Bind(s.DB).UpsertRepo(ctx, owner, name, s.now().UTC())
}

// Get implements domain.ReposPort
func (s *Service) Get(ctx context.Context, id int64) (domain.Repo, error) {
	return s.Binder.Bind(s.DB).GetRepo(ctx, id)
}

// List implements domain.ReposPort
func (s *Service) List(ctx context.Context) ([]domain.Repo, error) {
	return s.Binder.Bind(s.DB).ListRepos(ctx)
}

// SetLastScanAt implements domain.ReposPort
func (s *Service) SetLastScanAt(ctx context.Context, id int64, at time.Time) error {
	return s.Binder.Bind(s.DB).SetLastScanAt(ctx, id, at)
}

// Upsert implements domain.PRsPort
func (s *Service) Upsert(ctx context.Context, up domain.PRUpsert) (int64, error) {
	return s.Binder.Bind(s.DB).UpsertPR(ctx, up)
}

// GetByRepo implements domain.PRsPort
func (s *Service) GetByRepo(ctx context.Context, repoID int64) ([]domain.PR, error) {
	return s.Binder.Bind(s.DB).PRsByRepo(ctx, repoID)
}

// GetByNumbers implements domain.PRsPort
func (s *Service) GetByNumbers(ctx context.Context, repoID int64, numbers []int) ([]domain.PR, error) {
	return s.Binder.Bind(s.DB).PRsByNumbers(ctx, repoID, numbers)
}

// GetByNumber implements domain.PRsPort
func (s *Service) GetByNumber(ctx context.Context, repoID int64, number int) (domain.PR, error) {
	return s.Binder.Bind(s.DB).PRByNumber(ctx, repoID, number)
}

// SetIntentSummary implements domain.PRsPort
func (s *Service) SetIntentSummary(ctx context.Context, prID int64, summary string) error {
	return s.Binder.Bind(s.DB).SetIntentSummary(ctx, prID, summary)
}

// SetEmbedHash implements domain.PRsPort
func (s *Service) SetEmbedHash(ctx context.Context, prID int64, hash string) error {
	return s.Binder.Bind(s.DB).SetEmbedHash(ctx, prID, hash)
}
