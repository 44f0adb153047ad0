package domain

import (
	"context"

	"dupehound/internal/adapters/github"
	"dupehound/internal/adapters/llm"
	"dupehound/internal/adapters/vector"
)

// AccountsPort is the account registry surface
type AccountsPort interface {
	Create(ctx context.Context, in CreateInput) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByAPIKey(ctx context.Context, key string) (Account, error)
}

// ResolverPort builds provider clients from an account's config
type ResolverPort interface {
	Resolve(ctx context.Context, accountID int64) (*Services, error)
}

// Services bundles everything a processor needs to run a scan for one account
type Services struct {
	GitHub GitHubPort
	Chat   ChatPort
	Embed  EmbedPort
	Vector VectorPort

	// BatchChat / BatchEmbed gate the async provider protocol per config
	BatchChat  bool
	BatchEmbed bool

	Tuning Tuning
}

// GitHubPort is the slice of the GitHub client the pipeline reads through
type GitHubPort interface {
	ListOpenPRs(ctx context.Context, owner, repo string, max int) ([]github.PR, error)
	FetchPR(ctx context.Context, owner, repo string, number int) (github.PR, error)
	GetPRFiles(ctx context.Context, owner, repo string, number int) ([]string, error)
	GetPRDiff(ctx context.Context, owner, repo string, number int, etag string) (
		diff string, newETag string, notModified bool, err error)
}

// ChatPort is the chat provider surface
type ChatPort interface {
	Chat(ctx context.Context, msgs []llm.Message) (llm.ChatResult, error)
	ChatBatch(ctx context.Context, reqs []llm.ChatRequest, opts llm.BatchOpts) ([]llm.ChatOutcome, error)
	CountTokens(s string) int
	MaxContextTokens() int
}

// EmbedPort is the embedding provider surface
type EmbedPort interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, llm.Usage, error)
	EmbedBatch(ctx context.Context, inputs []string, opts llm.BatchOpts) ([][]float32, llm.Usage, error)
	CountTokens(s string) int
	Dimensions() int
}

// VectorPort is the vector store surface
type VectorPort interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, points []vector.Point) error
	Search(ctx context.Context, collection string, vec []float32, q vector.SearchQuery) ([]vector.Scored, error)
	DeleteByFilter(ctx context.Context, collection string, f vector.Filter) error
	GetVector(ctx context.Context, collection, id string) ([]float32, bool, error)
}
