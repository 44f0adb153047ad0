// Package service implements account registration, config validation and
// provider resolution
package service

import (
	"context"
	json "encoding/json/v2"
	"time"

	"github.com/google/uuid"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/metrics"
	"dupehound/internal/platform/net/http/bind"
	"dupehound/internal/services/accounts/domain"
	"dupehound/internal/services/accounts/repo"
)

// Config for the accounts service; these knobs are process wide and flow
// into every resolved provider client
type Config struct {
	GitHubMaxDiffBytes  int64
	GitHubMaxConcurrent int
	GitHubMaxRetries    int

	ProviderMaxConcurrent int
	ProviderMaxRetries    int

	Metrics *metrics.Metrics
}

// Service implements domain.AccountsPort and domain.ResolverPort
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[repo.Storage]
	Cfg    Config

	// now is a clock seam for tests
	now func() time.Time
}

// New constructs the accounts service
func New(db repokit.TxRunner, b repokit.Binder[repo.Storage], cfg Config) *Service {
	return &Service{DB: db, Binder: b, Cfg: cfg, now: time.Now}
}

// Create implements domain.AccountsPort. The config is validated before it
// is persisted so resolution can trust stored blobs
func (s *Service) Create(ctx context.Context, in domain.CreateInput) (domain.Account, error) {
	if err := validateConfig(in.Config); err != nil {
		return domain.Account{}, err
	}

	raw, err := json.Marshal(in.Config)
	if err != nil {
		return domain.Account{}, perr.Wrap(err, perr.ErrorCodeJSON, "encode account config")
	}

	now := s.now().UTC()
	apiKey := uuid.NewString()
	id, err := s.Binder.Bind(s.DB).Insert(ctx, apiKey, in.Label, string(raw), now)
	if err != nil {
		return domain.Account{}, err
	}
	return domain.Account{
		ID:        id,
		APIKey:    apiKey,
		Label:     in.Label,
		Config:    in.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get implements domain.AccountsPort
func (s *Service) Get(ctx context.Context, id int64) (domain.Account, error) {
	row, err := s.Binder.Bind(s.DB).GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	return fromRow(row)
}

// GetByAPIKey implements domain.AccountsPort
func (s *Service) GetByAPIKey(ctx context.Context, key string) (domain.Account, error) {
	row, err := s.Binder.Bind(s.DB).GetByAPIKey(ctx, key)
	if err != nil {
		return domain.Account{}, err
	}
	return fromRow(row)
}

func fromRow(row repo.Row) (domain.Account, error) {
	var cfg domain.Config
	if err := json.Unmarshal([]byte(row.ConfigRaw), &cfg); err != nil {
		return domain.Account{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode account config")
	}
	return domain.Account{
		ID:        row.ID,
		APIKey:    row.APIKey,
		Label:     row.Label,
		Config:    cfg,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func validateConfig(cfg domain.Config) error {
	if err := bind.Get().Validator.Struct(cfg); err != nil {
		field, msg := bind.ValidationFieldAndMessage(err)
		if field != "" {
			return perr.Newf(perr.ErrorCodeValidation, "config %s: %s", field, msg)
		}
		return perr.Newf(perr.ErrorCodeValidation, "config: %s", msg)
	}
	return nil
}
