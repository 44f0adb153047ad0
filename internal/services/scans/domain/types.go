// Package domain defines scans, dupe groups and the pipeline job payloads
package domain

import "time"

// Scan statuses. The pipeline walks queued → ingesting → embedding →
// verifying → ranking → done; anything may drop to failed. paused is
// reserved for manual control
const (
	StatusQueued    = "queued"
	StatusIngesting = "ingesting"
	StatusEmbedding = "embedding"
	StatusVerifying = "verifying"
	StatusRanking   = "ranking"
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusPaused    = "paused"
)

// nextStatus is the forward edge set of the scan state machine
var nextStatus = map[string]string{
	StatusQueued:    StatusIngesting,
	StatusIngesting: StatusEmbedding,
	StatusEmbedding: StatusVerifying,
	StatusVerifying: StatusRanking,
	StatusRanking:   StatusDone,
}

// ValidTransition reports whether from → to is a legal status write.
// Failure is reachable from anywhere; a retried processor may rewrite the
// status it already holds
func ValidTransition(from, to string) bool {
	if to == StatusFailed || from == to {
		return true
	}
	return nextStatus[from] == to
}

// statusOrder is the pipeline position of each status; terminal and reserved
// statuses sort past every pipeline stage
var statusOrder = map[string]int{
	StatusQueued:    0,
	StatusIngesting: 1,
	StatusEmbedding: 2,
	StatusVerifying: 3,
	StatusRanking:   4,
	StatusDone:      5,
	StatusFailed:    5,
	StatusPaused:    5,
}

// AtOrPast reports whether cur has already reached target. Retried
// processors use it to skip status writes for stages they completed before
// the crash
func AtOrPast(cur, target string) bool {
	return statusOrder[cur] >= statusOrder[target]
}

// PhaseUsage is the token spend of one pipeline phase
type PhaseUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// Scan is one detection run over a repo's open PRs
type Scan struct {
	ID             int64
	RepoID         int64
	AccountID      int64
	Status         string
	PhaseCursor    *string
	InputTokens    int64
	OutputTokens   int64
	TokenUsage     map[string]PhaseUsage
	PRCount        int
	DupeGroupCount int
	Error          string
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// Group is one detected set of duplicate PRs, members ranked best first
type Group struct {
	ID           int64
	ScanID       int64
	RepoID       int64
	Label        string
	Confidence   float64
	Relationship string
	Members      []GroupMember
}

// GroupMember joins a PR into a group. Rank 1 is the recommended PR
type GroupMember struct {
	PRID      int64
	Number    int
	Title     string
	Rank      int
	Score     float64
	Rationale string
}

// GroupWrite is the persistence shape for one group
type GroupWrite struct {
	Label        string
	Confidence   float64
	Relationship string
	Members      []MemberWrite
}

// MemberWrite is one ranked member of a GroupWrite
type MemberWrite struct {
	PRID      int64
	Rank      int
	Score     float64
	Rationale string
}
