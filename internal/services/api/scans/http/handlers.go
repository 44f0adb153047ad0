// Package http provides http transport for scans
package http

import (
	stdhttp "net/http"

	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/services/api/scans/domain"
	sdom "dupehound/internal/services/scans/domain"
)

// Register mounts scans endpoints on the given router
func Register(r httpkit.Router, scans sdom.ScansPort, groups sdom.GroupsPort) {
	h := &handlers{scans: scans, groups: groups}

	httpkit.PostJSON[domain.StartInput](r, "/", h.start)
	httpkit.Get(r, "/{id}", h.get)
	httpkit.Get(r, "/{id}/groups", h.listGroups)
}

type handlers struct {
	scans  sdom.ScansPort
	groups sdom.GroupsPort
}

// start creates a queued scan and its orchestrator job
func (h *handlers) start(r *stdhttp.Request, in domain.StartInput) (any, error) {
	if err := httpkit.CheckAccount(r, in.AccountID); err != nil {
		return nil, err
	}
	started, err := h.scans.Start(r.Context(), sdom.StartInput{
		RepoID:    in.RepoID,
		AccountID: in.AccountID,
		MaxPRs:    in.MaxPRs,
	})
	if err != nil {
		return nil, err
	}
	return httpkit.Created(started), nil
}

// get reports scan progress: status, counters, token spend, terminal error
func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	s, err := h.scans.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := httpkit.CheckAccount(r, s.AccountID); err != nil {
		return nil, err
	}
	return domain.FromScan(s), nil
}

// listGroups returns the scan's duplicate groups with ranked members.
// The scan is fetched first so an unknown id reads as 404, not an empty list
func (h *handlers) listGroups(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	s, err := h.scans.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := httpkit.CheckAccount(r, s.AccountID); err != nil {
		return nil, err
	}
	gs, err := h.groups.ListByScan(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return domain.FromGroups(gs), nil
}
