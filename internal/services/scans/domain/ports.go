package domain

import "context"

// StartInput creates and enqueues a scan
type StartInput struct {
	RepoID    int64
	AccountID int64
	MaxPRs    int
}

// Started reports the created scan and its orchestrator job
type Started struct {
	ScanID int64  `json:"scanId"`
	JobID  string `json:"jobId"`
}

// ScansPort is the scan lifecycle surface
type ScansPort interface {
	// Start creates a queued scan and enqueues the orchestrator job
	Start(ctx context.Context, in StartInput) (Started, error)

	Get(ctx context.Context, id int64) (Scan, error)

	// Transition writes a status after checking the state machine
	Transition(ctx context.Context, id int64, to string) error

	// SetPhaseCursor checkpoints an async provider batch id; nil clears
	SetPhaseCursor(ctx context.Context, id int64, cursor *string) error

	SetPRCount(ctx context.Context, id int64, n int) error

	// AddTokenUsage accumulates a phase's spend into the scan counters
	AddTokenUsage(ctx context.Context, id int64, phase string, in, out int64) error

	// MarkDone finishes a scan with its group count
	MarkDone(ctx context.Context, id int64, groupCount int) error

	// MarkFailed records the terminal error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

// GroupsPort is the dupe group surface
type GroupsPort interface {
	// Replace swaps a scan's groups in one transaction
	Replace(ctx context.Context, scanID, repoID int64, groups []GroupWrite) error

	// ListByScan returns groups with ranked members, best rank first
	ListByScan(ctx context.Context, scanID int64) ([]Group, error)
}
