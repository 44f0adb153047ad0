// Package clique forms strict duplicate groups from confirmed pairwise edges.
// A PR joins a group only when it has a confirmed edge to every member, so
// chains never promote transitively: confirming A-B and B-C without A-C can
// produce {A,B} or {B,C} but never {A,B,C}. Greedy by descending confidence;
// recall matters more here than maximum-clique optimality
package clique

import "sort"

// Edge is one pairwise verification result between two PR numbers
type Edge struct {
	A, B         int
	Duplicate    bool
	Confidence   float64
	Relationship string
}

// Group is a strict clique of PR numbers. Confidence is the mean over all
// intra-group edges; Relationship comes from the seed edge
type Group struct {
	Members      []int
	Confidence   float64
	Relationship string
}

type pair struct{ lo, hi int }

func pairOf(a, b int) pair {
	if a > b {
		a, b = b, a
	}
	return pair{lo: a, hi: b}
}

// Build groups the confirmed edges into strict cliques of size >= 2
func Build(edges []Edge) []Group {
	confirmed := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Duplicate && e.A != e.B {
			confirmed = append(confirmed, e)
		}
	}
	if len(confirmed) == 0 {
		return nil
	}

	sort.SliceStable(confirmed, func(i, j int) bool {
		return confirmed[i].Confidence > confirmed[j].Confidence
	})

	// highest-confidence edge per pair wins when verifiers disagree
	conf := make(map[pair]float64, len(confirmed))
	for _, e := range confirmed {
		p := pairOf(e.A, e.B)
		if _, ok := conf[p]; !ok {
			conf[p] = e.Confidence
		}
	}

	// candidate pool in first-appearance order over the sorted edges
	var pool []int
	seen := make(map[int]bool)
	for _, e := range confirmed {
		if !seen[e.A] {
			seen[e.A] = true
			pool = append(pool, e.A)
		}
		if !seen[e.B] {
			seen[e.B] = true
			pool = append(pool, e.B)
		}
	}

	used := make(map[int]bool, len(pool))
	var out []Group
	for _, seed := range confirmed {
		if used[seed.A] || used[seed.B] {
			continue
		}
		members := []int{seed.A, seed.B}
		used[seed.A], used[seed.B] = true, true

		for _, c := range pool {
			if used[c] || !adjacentToAll(c, members, conf) {
				continue
			}
			members = append(members, c)
			used[c] = true
		}

		out = append(out, Group{
			Members:      members,
			Confidence:   meanConfidence(members, conf),
			Relationship: seed.Relationship,
		})
	}
	return out
}

func adjacentToAll(c int, members []int, conf map[pair]float64) bool {
	for _, m := range members {
		if _, ok := conf[pairOf(c, m)]; !ok {
			return false
		}
	}
	return true
}

func meanConfidence(members []int, conf map[pair]float64) float64 {
	var sum float64
	var n int
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if v, ok := conf[pairOf(members[i], members[j])]; ok {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
