// Package module wires the accounts http surface into the API using modkit
package module

import (
	modkit "dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	str "dupehound/internal/platform/strings"
	acc "dupehound/internal/services/accounts/domain"
	accountshttp "dupehound/internal/services/api/accounts/http"
)

// Ports declares the core service surface this module consumes.
// The caller injects it with modkit.WithPorts
type Ports struct {
	Accounts acc.AccountsPort
}

// Module adapts the accounts port to HTTP routes
type Module struct {
	name   string
	prefix string
	ports  Ports
}

// New constructs an accounts module with the provided options
func New(opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("accounts"),
		modkit.WithPrefix("/accounts"),
	}, opts...)...)

	in, ok := b.Ports.(Ports)
	if !ok || in.Accounts == nil {
		panic("accounts api module requires an AccountsPort")
	}

	return &Module{name: b.Name, prefix: str.MustPrefix(b.Prefix), ports: in}
}

// MountRoutes implements the module contract
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		accountshttp.Register(rr, m.ports.Accounts)
	})
}

// Name implements the module contract
func (m *Module) Name() string { return str.MustString(m.name, "accounts-api") }

// Ports implements the module contract
func (m *Module) Ports() any { return m.ports }
