// Package module wires the detect strategy and the ad hoc finder
package module

import (
	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	accounts "dupehound/internal/services/accounts/domain"
	catalog "dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/detect/domain"
	"dupehound/internal/services/detect/service"
	scans "dupehound/internal/services/scans/domain"
	worker "dupehound/internal/services/worker/domain"
)

// Ports exposed by the detect module
type Ports struct {
	Finder domain.FinderPort

	// Processor handles detect jobs on the worker loop
	Processor worker.Processor
}

// Module implements the module contract
type Module struct {
	ports Ports
}

// New constructs the detect module over its cross-service ports
func New(
	deps modkit.Deps,
	scansPort scans.ScansPort,
	groups scans.GroupsPort,
	repos catalog.ReposPort,
	prs catalog.PRsPort,
	resolver accounts.ResolverPort,
) *Module {
	cfg := FromConfig(deps.Cfg)

	m := &Module{}
	m.ports = Ports{
		Finder: service.NewFinder(repos, prs, resolver),
		Processor: service.NewStrategy(
			deps.DB,
			scansPort,
			groups,
			repos,
			prs,
			resolver,
			service.Config{OutputReserve: cfg.OutputReserve},
			deps.Log,
			deps.Metrics,
		),
	}
	return m
}

// Name implements the module contract
func (m *Module) Name() string { return "detect" }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements the module contract; the HTTP surface lives in the api
// module
func (m *Module) MountRoutes(httpkit.Router) {}
