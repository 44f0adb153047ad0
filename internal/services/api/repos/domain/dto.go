// Package domain holds DTOs for the repos http surface
package domain

import (
	"time"

	cat "dupehound/internal/services/catalog/domain"
)

// TrackInput registers a repository for scanning
type TrackInput struct {
	Owner string `json:"owner" validate:"required,min=1,max=200"`
	Name  string `json:"name" validate:"required,min=1,max=200"`
}

// FindDuplicatesInput asks for near duplicates of one PR
type FindDuplicatesInput struct {
	AccountID int64 `json:"accountId" validate:"required,min=1"`
	PRNumber  int   `json:"prNumber" validate:"required,min=1"`
}

// RepoOut is the public repo shape
type RepoOut struct {
	ID         int64   `json:"id"`
	Owner      string  `json:"owner"`
	Name       string  `json:"name"`
	FullName   string  `json:"fullName"`
	CreatedAt  string  `json:"createdAt"`
	LastScanAt *string `json:"lastScanAt,omitempty"`
}

// FromRepo maps the catalog entity
func FromRepo(r cat.Repo) RepoOut {
	out := RepoOut{
		ID:        r.ID,
		Owner:     r.Owner,
		Name:      r.Name,
		FullName:  r.FullName(),
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.LastScanAt != nil {
		s := r.LastScanAt.UTC().Format(time.RFC3339)
		out.LastScanAt = &s
	}
	return out
}

// FromRepos maps a list preserving order
func FromRepos(rs []cat.Repo) []RepoOut {
	out := make([]RepoOut, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromRepo(r))
	}
	return out
}
