// Package domain defines the duplicate detection types and ports
package domain

// Vector store collections, one per embedding space
const (
	SpaceCode   = "code"
	SpaceIntent = "intent"
)

// MaxVerifyCluster caps how many PRs of one same-diff-hash equivalence class
// are verified together; larger classes are split so a pathological set of
// identical diffs stays tractable
const MaxVerifyCluster = 50

// Relationship values the verifier may assign to a confirmed pair
const (
	RelationshipExactDuplicate = "exact_duplicate"
	RelationshipNearDuplicate  = "near_duplicate"
	RelationshipRelated        = "related"
)

// VerifyResult is the verifier's judgement on one candidate pair. The JSON
// shape doubles as the pairwise cache's stored document
type VerifyResult struct {
	IsDuplicate  bool    `json:"isDuplicate"`
	Confidence   float64 `json:"confidence"`
	Relationship string  `json:"relationship"`
	Rationale    string  `json:"rationale"`
}

// RankEntry is the ranker's score for one group member
type RankEntry struct {
	PRNumber  int     `json:"prNumber"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Match is one on-the-fly duplicate candidate for a single PR
type Match struct {
	Number int     `json:"number"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
	Space  string  `json:"space"`
}
