// Package domain defines accounts, their provider configuration and the
// resolved service bundle handed to scan processors
package domain

import "time"

// Account owns provider credentials and scan tuning for every scan run
// under it. Config is stored as validated JSON
type Account struct {
	ID        int64
	APIKey    string
	Label     string
	Config    Config
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput is the account registration payload
type CreateInput struct {
	Label  string `json:"label"`
	Config Config `json:"config" validate:"required"`
}

// Config is the per-account provider configuration blob
type Config struct {
	GitHub      GitHubConfig      `json:"github" validate:"required"`
	LLM         ProviderConfig    `json:"llm" validate:"required"`
	Embedding   ProviderConfig    `json:"embedding" validate:"required"`
	VectorStore VectorStoreConfig `json:"vector_store" validate:"required"`
	Scan        ScanConfig        `json:"scan"`
}

// GitHubConfig carries the token used for all GitHub reads
type GitHubConfig struct {
	Token string `json:"token" validate:"required"`
}

// ProviderConfig describes one chat or embedding endpoint.
// Provider "openai" speaks the batch protocol; "ollama" is sync only
type ProviderConfig struct {
	Provider string `json:"provider" validate:"required,oneof=openai ollama"`
	URL      string `json:"url" validate:"omitempty,url"`
	Model    string `json:"model" validate:"required"`
	APIKey   string `json:"api_key"`
	Batch    *bool  `json:"batch"`
}

// BatchEnabled reports whether batch calls are allowed: explicit flag wins,
// otherwise only the openai variant batches
func (p ProviderConfig) BatchEnabled() bool {
	if p.Batch != nil {
		return *p.Batch
	}
	return p.Provider == "openai"
}

// VectorStoreConfig locates the vector store
type VectorStoreConfig struct {
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"api_key"`
}

// ScanConfig holds optional tuning; zero fields fall back to defaults
type ScanConfig struct {
	CandidateThreshold        *float64 `json:"candidate_threshold" validate:"omitempty,gt=0,lte=1"`
	MaxCandidatesPerPR        *int     `json:"max_candidates_per_pr" validate:"omitempty,min=1,max=100"`
	CodeSimilarityThreshold   *float64 `json:"code_similarity_threshold" validate:"omitempty,gt=0,lte=1"`
	IntentSimilarityThreshold *float64 `json:"intent_similarity_threshold" validate:"omitempty,gt=0,lte=1"`
}

// Tuning defaults
const (
	DefaultCandidateThreshold = 0.65
	DefaultMaxCandidatesPerPR = 10
)

// Tuning is ScanConfig with every default applied. Per-space thresholds
// fall back to the candidate threshold when unset
type Tuning struct {
	CandidateThreshold float64
	MaxCandidatesPerPR int
	CodeThreshold      float64
	IntentThreshold    float64
}

// Tuning resolves the effective knobs for a scan
func (c ScanConfig) Tuning() Tuning {
	t := Tuning{
		CandidateThreshold: DefaultCandidateThreshold,
		MaxCandidatesPerPR: DefaultMaxCandidatesPerPR,
	}
	if c.CandidateThreshold != nil {
		t.CandidateThreshold = *c.CandidateThreshold
	}
	if c.MaxCandidatesPerPR != nil {
		t.MaxCandidatesPerPR = *c.MaxCandidatesPerPR
	}
	t.CodeThreshold = t.CandidateThreshold
	t.IntentThreshold = t.CandidateThreshold
	if c.CodeSimilarityThreshold != nil {
		t.CodeThreshold = *c.CodeSimilarityThreshold
	}
	if c.IntentSimilarityThreshold != nil {
		t.IntentThreshold = *c.IntentSimilarityThreshold
	}
	return t
}
