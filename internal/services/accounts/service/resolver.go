package service

import (
	"context"

	"dupehound/internal/adapters/github"
	"dupehound/internal/adapters/llm"
	"dupehound/internal/adapters/vector"
	"dupehound/internal/services/accounts/domain"
)

// Resolve implements domain.ResolverPort: load the account, parse its
// validated config and build the provider clients a processor will use.
// Clients are cheap to construct, so resolution happens once per job
func (s *Service) Resolve(ctx context.Context, accountID int64) (*domain.Services, error) {
	acct, err := s.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cfg := acct.Config

	gh := github.NewClient(github.Options{
		Token:         cfg.GitHub.Token,
		MaxDiffBytes:  s.Cfg.GitHubMaxDiffBytes,
		MaxConcurrent: s.Cfg.GitHubMaxConcurrent,
		MaxRetries:    s.Cfg.GitHubMaxRetries,
		Metrics:       s.Cfg.Metrics,
	})

	chat := llm.New(llm.Options{
		Name:          "chat",
		BaseURL:       cfg.LLM.URL,
		APIKey:        cfg.LLM.APIKey,
		Model:         cfg.LLM.Model,
		MaxConcurrent: s.Cfg.ProviderMaxConcurrent,
		MaxRetries:    s.Cfg.ProviderMaxRetries,
		Metrics:       s.Cfg.Metrics,
	})

	embed := llm.New(llm.Options{
		Name:          "embed",
		BaseURL:       cfg.Embedding.URL,
		APIKey:        cfg.Embedding.APIKey,
		Model:         cfg.Embedding.Model,
		MaxConcurrent: s.Cfg.ProviderMaxConcurrent,
		MaxRetries:    s.Cfg.ProviderMaxRetries,
		Metrics:       s.Cfg.Metrics,
	})

	vec := vector.New(vector.Options{
		BaseURL:       cfg.VectorStore.URL,
		APIKey:        cfg.VectorStore.APIKey,
		MaxConcurrent: s.Cfg.ProviderMaxConcurrent,
		MaxRetries:    s.Cfg.ProviderMaxRetries,
		Metrics:       s.Cfg.Metrics,
	})

	return &domain.Services{
		GitHub:     gh,
		Chat:       chat,
		Embed:      embed,
		Vector:     vec,
		BatchChat:  cfg.LLM.BatchEnabled(),
		BatchEmbed: cfg.Embedding.BatchEnabled(),
		Tuning:     cfg.Scan.Tuning(),
	}, nil
}
