// Package module wires the repos http surface into the API using modkit
package module

import (
	modkit "dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	str "dupehound/internal/platform/strings"
	reposhttp "dupehound/internal/services/api/repos/http"
	cat "dupehound/internal/services/catalog/domain"
	det "dupehound/internal/services/detect/domain"
)

// Ports declares the core service surface this module consumes.
// The caller injects it with modkit.WithPorts
type Ports struct {
	Repos  cat.ReposPort
	Finder det.FinderPort
}

// Module adapts the catalog and detect ports to HTTP routes
type Module struct {
	name   string
	prefix string
	ports  Ports
}

// New constructs a repos module with the provided options
func New(opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("repos"),
		modkit.WithPrefix("/repos"),
	}, opts...)...)

	in, ok := b.Ports.(Ports)
	if !ok || in.Repos == nil || in.Finder == nil {
		panic("repos api module requires ReposPort and FinderPort")
	}

	return &Module{name: b.Name, prefix: str.MustPrefix(b.Prefix), ports: in}
}

// MountRoutes implements the module contract
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		reposhttp.Register(rr, m.ports.Repos, m.ports.Finder)
	})
}

// Name implements the module contract
func (m *Module) Name() string { return str.MustString(m.name, "repos-api") }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }
