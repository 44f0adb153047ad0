// Package module wires meta endpoints into the API using a tiny module
package module

import (
	"time"

	modkit "dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/modkit/repokit"
	str "dupehound/internal/platform/strings"

	metahttp "dupehound/internal/services/api/meta/http"
)

// Module serves health, readiness and build info endpoints
type Module struct {
	name   string
	prefix string
	db     repokit.TxRunner

	startedAt time.Time
}

// New constructs a meta module. The db handle feeds the readiness probe
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("meta"),
		modkit.WithPrefix("/meta"),
	}, opts...)...)

	return &Module{
		name:      b.Name,
		prefix:    str.MustPrefix(b.Prefix),
		db:        deps.DB,
		startedAt: time.Now(),
	}
}

// MountRoutes implements the module contract
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		metahttp.Register(rr, metahttp.Deps{
			ServiceName: "dupehound-server",
			StartedAt:   m.startedAt,
			DB:          m.db,
		})
	})
}

// Name implements the module contract
func (m *Module) Name() string { return str.MustString(m.name, "meta") }

// Ports implements the module contract
func (m *Module) Ports() any { return nil }
