// Package http provides http transport for repos
package http

import (
	stdhttp "net/http"

	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/services/api/repos/domain"
	cat "dupehound/internal/services/catalog/domain"
	det "dupehound/internal/services/detect/domain"
)

// Register mounts repos endpoints on the given router
func Register(r httpkit.Router, repos cat.ReposPort, finder det.FinderPort) {
	h := &handlers{repos: repos, finder: finder}

	httpkit.PostJSON[domain.TrackInput](r, "/", h.track)
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.get)

	// ad hoc duplicate query against the stored vectors
	httpkit.PostJSON[domain.FindDuplicatesInput](r, "/{id}/find-duplicates", h.findDuplicates)
}

type handlers struct {
	repos  cat.ReposPort
	finder det.FinderPort
}

// track registers owner/name idempotently
func (h *handlers) track(r *stdhttp.Request, in domain.TrackInput) (any, error) {
	repo, err := h.repos.Track(r.Context(), in.Owner, in.Name)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(domain.FromRepo(repo)), nil
}

func (h *handlers) list(r *stdhttp.Request) (any, error) {
	repos, err := h.repos.List(r.Context())
	if err != nil {
		return nil, err
	}
	return domain.FromRepos(repos), nil
}

func (h *handlers) get(r *stdhttp.Request) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	repo, err := h.repos.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return domain.FromRepo(repo), nil
}

// findDuplicates embeds the PR on the fly when it is unknown locally and
// returns the nearest stored neighbours
func (h *handlers) findDuplicates(r *stdhttp.Request, in domain.FindDuplicatesInput) (any, error) {
	id, err := httpkit.ParamInt64(r, "id")
	if err != nil {
		return nil, err
	}
	if err := httpkit.CheckAccount(r, in.AccountID); err != nil {
		return nil, err
	}
	return h.finder.FindDuplicates(r.Context(), det.FindInput{
		RepoID:    id,
		AccountID: in.AccountID,
		Number:    in.PRNumber,
	})
}
