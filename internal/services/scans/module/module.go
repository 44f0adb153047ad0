// Package module wires the scan lifecycle service and its pipeline processors
package module

import (
	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	accounts "dupehound/internal/services/accounts/domain"
	catalog "dupehound/internal/services/catalog/domain"
	jobs "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/scans/domain"
	"dupehound/internal/services/scans/repo"
	"dupehound/internal/services/scans/service"
	worker "dupehound/internal/services/worker/domain"
)

// Ports exposed by the scans module
type Ports struct {
	Scans  domain.ScansPort
	Groups domain.GroupsPort

	// Processors for the worker loop: orchestration and ingest
	Processors []worker.Processor
}

// Module implements the module contract
type Module struct {
	ports Ports
}

// New constructs the scans module over its cross-service ports
func New(
	deps modkit.Deps,
	queue jobs.QueuePort,
	repos catalog.ReposPort,
	prs catalog.PRsPort,
	resolver accounts.ResolverPort,
) *Module {
	svc := service.New(deps.DB, repo.NewStore(), queue, repos)

	m := &Module{}
	m.ports = Ports{
		Scans:  svc,
		Groups: svc,
		Processors: []worker.Processor{
			service.NewOrchestrator(svc, queue),
			service.NewIngester(svc, queue, resolver, prs, deps.Log, deps.Metrics),
		},
	}
	return m
}

// Name implements the module contract
func (m *Module) Name() string { return "scans" }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements the module contract; the HTTP surface lives in the api
// module
func (m *Module) MountRoutes(httpkit.Router) {}
