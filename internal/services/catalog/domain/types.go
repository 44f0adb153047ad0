// Package domain defines the tracked repository and pull request records
package domain

import "time"

// Repo is a tracked GitHub repository
type Repo struct {
	ID         int64      `json:"id"`
	Owner      string     `json:"owner"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastScanAt *time.Time `json:"lastScanAt,omitempty"`
}

// FullName renders owner/name
func (r Repo) FullName() string { return r.Owner + "/" + r.Name }

// PR is the locally cached view of a pull request. EmbedHash and
// IntentSummary are detection checkpoints: EmbedHash proves the vectors in
// the vector store are current for this content, IntentSummary caches the
// extracted intent
type PR struct {
	ID            int64
	RepoID        int64
	Number        int
	Title         string
	Body          string
	Author        string
	DiffHash      string
	FilePaths     []string
	State         string
	GitHubETag    string
	EmbedHash     string
	IntentSummary string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PRUpsert is what the ingester writes for one PR. DiffHash nil stores NULL
// (oversized diff); the caller resolves keep-versus-replace before the write.
// Detection checkpoints are never touched by an upsert
type PRUpsert struct {
	RepoID    int64
	Number    int
	Title     string
	Body      string
	Author    string
	DiffHash  *string
	FilePaths []string
	State     string
	ETag      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
