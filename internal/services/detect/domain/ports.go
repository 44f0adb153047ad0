package domain

import "context"

// FindInput asks for duplicates of a single PR outside a scan
type FindInput struct {
	RepoID    int64
	AccountID int64
	Number    int
}

// FinderPort answers ad hoc duplicate queries, embedding the PR on the fly
// when the local cache has never seen it
type FinderPort interface {
	FindDuplicates(ctx context.Context, in FindInput) ([]Match, error)
}
