// Package module wires the worker loop and exposes its runner port
package module

import (
	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	jobs "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/worker/domain"
	"dupehound/internal/services/worker/service"
)

// Ports exposed by the worker module
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the module contract
type Module struct {
	ports Ports
}

// New constructs the worker module over the job queue port
func New(deps modkit.Deps, queue jobs.QueuePort) *Module {
	opts := FromConfig(deps.Cfg)

	svc := service.New(queue, deps.Log, deps.Metrics, service.Config{
		PollInterval: opts.PollInterval,
		MaxBackoff:   opts.MaxBackoff,
	})

	m := &Module{}
	m.ports = Ports{Runner: svc}
	return m
}

// Name implements the module contract
func (m *Module) Name() string { return "worker" }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }

// MountRoutes implements the module contract; the worker has no HTTP surface
func (m *Module) MountRoutes(httpkit.Router) {}
