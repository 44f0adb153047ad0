// Package http provides meta endpoints
package http

import (
	stdctx "context"
	"net/http"
	"time"

	"dupehound/internal/core/version"
	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/modkit/module"
)

// Pinger is satisfied by adapters that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	DB          any
}

type handlers struct {
	deps Deps
}

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Now     string `json:"now"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped unknown
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"` // ok fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"`
}

// ServiceResponse describes service info
type ServiceResponse struct {
	Name    string   `json:"name"`
	Started string   `json:"started"`
	Uptime  int64    `json:"uptime"`
	Modules []string `json:"modules"`
}

func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *handlers) ready(_ *http.Request) (any, error) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 2*time.Second)
	defer cancel()

	check := func(name string, c any) ReadyCheck {
		if c == nil {
			return ReadyCheck{Name: name, Status: "skipped"}
		}
		if p, ok := c.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
			}
			return ReadyCheck{Name: name, Status: "ok"}
		}
		return ReadyCheck{Name: name, Status: "unknown"}
	}

	db := check("db", h.deps.DB)

	overall := "ok"
	if db.Status == "fail" {
		overall = "fail"
	}

	return ReadyResponse{
		Status: overall,
		Checks: []ReadyCheck{db},
		Now:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

func (h *handlers) service(_ *http.Request) (any, error) {
	uptime := time.Since(h.deps.StartedAt)
	return ServiceResponse{
		Name:    h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(uptime / time.Second),
		Modules: module.Names(),
	}, nil
}

// Healthz is the bare liveness probe mounted at the server root
func Healthz(_ *http.Request) (any, error) {
	return map[string]string{"status": "ok"}, nil
}

// Version reports build info at the server root
func Version(_ *http.Request) (any, error) {
	return version.Info(), nil
}
