// Package module wires the job queue service and exposes its ports
package module

import (
	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/jobs/repo"
	"dupehound/internal/services/jobs/service"
)

// Ports exposed by the jobs module
type Ports struct {
	Queue domain.QueuePort
}

// Module implements the module contract
type Module struct {
	ports Ports
}

// New constructs the jobs module
func New(deps modkit.Deps) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(deps.DB, repo.NewStore(), service.Config{
		DefaultMaxRetries: opts.DefaultMaxRetries,
	})

	m := &Module{}
	m.ports = Ports{Queue: svc}
	return m
}

// Name implements the module contract
func (m *Module) Name() string { return "jobs" }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements the module contract; the queue has no HTTP surface
func (m *Module) MountRoutes(httpkit.Router) {}
