// Package http provides http transport for accounts
package http

import (
	stdhttp "net/http"

	"dupehound/internal/modkit/httpkit"
	acc "dupehound/internal/services/accounts/domain"
	"dupehound/internal/services/api/accounts/domain"
)

// Register mounts accounts endpoints on the given router
func Register(r httpkit.Router, accounts acc.AccountsPort) {
	h := &handlers{accounts: accounts}
	httpkit.PostJSON[acc.CreateInput](r, "/", h.create)
	httpkit.Get(r, "/{id}", h.get)
}

type handlers struct{ accounts acc.AccountsPort }

// create registers an account after the service validates its provider config
func (h *handlers) create(r *stdhttp.Request, in acc.CreateInput) (any, error) {
	a, err := h.accounts.Create(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(domain.FromAccount(a, true)), nil
}

// get returns an account without its key material
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	if err := httpkit.CheckAccount(r, id); err != nil {
		return nil, err
	}
	a, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return domain.FromAccount(a, false), nil
}
