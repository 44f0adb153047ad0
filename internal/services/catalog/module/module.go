// Package module wires the catalog service and exposes its ports
package module

import (
	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/catalog/repo"
	"dupehound/internal/services/catalog/service"
)

// Ports exposed by the catalog module
type Ports struct {
	Repos domain.ReposPort
	PRs   domain.PRsPort
}

// Module implements the module contract
type Module struct {
	ports Ports
}

// New constructs the catalog module
func New(deps modkit.Deps) *Module {
	svc := service.New(deps.DB, repo.NewStore())

	m := &Module{}
	m.ports = Ports{Repos: svc, PRs: svc}
	return m
}

// Name implements the module contract
func (m *Module) Name() string { return "catalog" }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements the module contract; the HTTP surface lives in the api
// module
func (m *Module) MountRoutes(httpkit.Router) {}
