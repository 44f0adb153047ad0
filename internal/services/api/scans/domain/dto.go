// Package domain holds DTOs for the scans http surface
package domain

import (
	"time"

	sdom "dupehound/internal/services/scans/domain"
)

// StartInput enqueues a scan over a tracked repository
type StartInput struct {
	RepoID    int64 `json:"repoId" validate:"required,min=1"`
	AccountID int64 `json:"accountId" validate:"required,min=1"`
	MaxPRs    int   `json:"maxPrs" validate:"omitempty,min=1,max=500"`
}

// ScanOut is the scan progress shape
type ScanOut struct {
	ID             int64                      `json:"id"`
	RepoID         int64                      `json:"repoId"`
	AccountID      int64                      `json:"accountId"`
	Status         string                     `json:"status"`
	PRCount        int                        `json:"prCount"`
	DupeGroupCount int                        `json:"dupeGroupCount"`
	InputTokens    int64                      `json:"inputTokens"`
	OutputTokens   int64                      `json:"outputTokens"`
	TokenUsage     map[string]sdom.PhaseUsage `json:"tokenUsage,omitempty"`
	Error          string                     `json:"error,omitempty"`
	StartedAt      string                     `json:"startedAt"`
	CompletedAt    *string                    `json:"completedAt,omitempty"`
}

// FromScan maps the scan entity
func FromScan(s sdom.Scan) ScanOut {
	out := ScanOut{
		ID:             s.ID,
		RepoID:         s.RepoID,
		AccountID:      s.AccountID,
		Status:         s.Status,
		PRCount:        s.PRCount,
		DupeGroupCount: s.DupeGroupCount,
		InputTokens:    s.InputTokens,
		OutputTokens:   s.OutputTokens,
		TokenUsage:     s.TokenUsage,
		Error:          s.Error,
		StartedAt:      s.StartedAt.UTC().Format(time.RFC3339),
	}
	if s.CompletedAt != nil {
		done := s.CompletedAt.UTC().Format(time.RFC3339)
		out.CompletedAt = &done
	}
	return out
}

// MemberOut is one ranked member of a duplicate group
type MemberOut struct {
	Number    int     `json:"number"`
	Title     string  `json:"title"`
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

// GroupOut is one duplicate group, members best rank first
type GroupOut struct {
	ID           int64       `json:"id"`
	Label        string      `json:"label"`
	Confidence   float64     `json:"confidence"`
	Relationship string      `json:"relationship"`
	Members      []MemberOut `json:"members"`
}

// FromGroups maps groups with their ranked members
func FromGroups(gs []sdom.Group) []GroupOut {
	out := make([]GroupOut, 0, len(gs))
	for _, g := range gs {
		members := make([]MemberOut, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, MemberOut{
				Number:    m.Number,
				Title:     m.Title,
				Rank:      m.Rank,
				Score:     m.Score,
				Rationale: m.Rationale,
			})
		}
		out = append(out, GroupOut{
			ID:           g.ID,
			Label:        g.Label,
			Confidence:   g.Confidence,
			Relationship: g.Relationship,
			Members:      members,
		})
	}
	return out
}
