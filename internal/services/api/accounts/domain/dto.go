// Package domain holds DTOs for the accounts http surface
package domain

import (
	"time"

	acc "dupehound/internal/services/accounts/domain"
)

// AccountOut is the public account shape. The API key appears once, in the
// create response, and never on later reads
type AccountOut struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	APIKey    string `json:"apiKey,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// FromAccount maps the service entity; withKey controls key exposure
func FromAccount(a acc.Account, withKey bool) AccountOut {
	out := AccountOut{
		ID:        a.ID,
		Label:     a.Label,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if withKey {
		out.APIKey = a.APIKey
	}
	return out
}
