// Package module wires the accounts service and exposes its ports
package module

import (
	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/services/accounts/domain"
	"dupehound/internal/services/accounts/repo"
	"dupehound/internal/services/accounts/service"
)

// Ports exposed by the accounts module
type Ports struct {
	Accounts domain.AccountsPort
	Resolver domain.ResolverPort
}

// Module implements the module contract
type Module struct {
	ports Ports
}

// New constructs the accounts module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.DB, repo.NewStore(), service.Config{
		GitHubMaxDiffBytes:    opts.GitHubMaxDiffBytes,
		GitHubMaxConcurrent:   opts.GitHubMaxConcurrent,
		GitHubMaxRetries:      opts.GitHubMaxRetries,
		ProviderMaxConcurrent: opts.ProviderMaxConcurrent,
		ProviderMaxRetries:    opts.ProviderMaxRetries,
		Metrics:               deps.Metrics,
	})

	m := &Module{}
	m.ports = Ports{Accounts: svc, Resolver: svc}
	return m
}

// Name implements the module contract
func (m *Module) Name() string { return "accounts" }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements the module contract; the HTTP surface lives in the api
// module
func (m *Module) MountRoutes(httpkit.Router) {}
