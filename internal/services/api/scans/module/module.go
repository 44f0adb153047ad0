// Package module wires the scans http surface into the API using modkit
package module

import (
	modkit "dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	str "dupehound/internal/platform/strings"
	scanshttp "dupehound/internal/services/api/scans/http"
	sdom "dupehound/internal/services/scans/domain"
)

// Ports declares the core service surface this module consumes.
// The caller injects it with modkit.WithPorts
type Ports struct {
	Scans  sdom.ScansPort
	Groups sdom.GroupsPort
}

// Module adapts the scans ports to HTTP routes
type Module struct {
	name   string
	prefix string
	ports  Ports
}

// New constructs a scans module with the provided options
func New(opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("scans"),
		modkit.WithPrefix("/scans"),
	}, opts...)...)

	in, ok := b.Ports.(Ports)
	if !ok || in.Scans == nil || in.Groups == nil {
		panic("scans api module requires ScansPort and GroupsPort")
	}

	return &Module{name: b.Name, prefix: str.MustPrefix(b.Prefix), ports: in}
}

// MountRoutes implements the module contract
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		scanshttp.Register(rr, m.ports.Scans, m.ports.Groups)
	})
}

// Name implements the module contract
func (m *Module) Name() string { return str.MustString(m.name, "scans-api") }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }
