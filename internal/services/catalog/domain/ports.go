package domain

import (
	"context"
	"time"
)

// ReposPort is the tracked-repository surface
type ReposPort interface {
	// Track registers owner/name idempotently and returns the row
	Track(ctx context.Context, owner, name string) (Repo, error)
	Get(ctx context.Context, id int64) (Repo, error)
	List(ctx context.Context) ([]Repo, error)
	SetLastScanAt(ctx context.Context, id int64, at time.Time) error
}

// PRsPort is the cached pull request surface used by ingest and detect
type PRsPort interface {
	Upsert(ctx context.Context, up PRUpsert) (int64, error)
	GetByRepo(ctx context.Context, repoID int64) ([]PR, error)
	GetByNumbers(ctx context.Context, repoID int64, numbers []int) ([]PR, error)
	GetByNumber(ctx context.Context, repoID int64, number int) (PR, error)

	// SetIntentSummary checkpoints an extracted intent immediately so a
	// retried detect job can resume without re-asking the provider
	SetIntentSummary(ctx context.Context, prID int64, summary string) error

	// SetEmbedHash records that the vector store holds current vectors for
	// this content hash; written only after a successful upsert
	SetEmbedHash(ctx context.Context, prID int64, hash string) error
}
