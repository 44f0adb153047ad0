// Package unionfind implements a disjoint-set forest with path compression
// and union by rank. The detect pipeline keeps it for partitioning utility
// work; group formation itself uses strict cliques, not transitive components
package unionfind

import (
	"sort"

	perr "dupehound/internal/platform/errors"
)

// ErrElementNotFound is returned by Find for elements never added
var ErrElementNotFound = perr.New(perr.ErrorCodeNotFound, "unionfind: element not found")

// Set is a disjoint-set forest over comparable elements. Not safe for
// concurrent use
type Set[T comparable] struct {
	parent map[T]T
	rank   map[T]int
}

// New constructs an empty Set
func New[T comparable]() *Set[T] {
	return &Set[T]{
		parent: make(map[T]T),
		rank:   make(map[T]int),
	}
}

// Add inserts x as a singleton component; adding a known element is a no-op
func (s *Set[T]) Add(x T) {
	if _, ok := s.parent[x]; ok {
		return
	}
	s.parent[x] = x
	s.rank[x] = 0
}

// Contains reports whether x was ever added
func (s *Set[T]) Contains(x T) bool {
	_, ok := s.parent[x]
	return ok
}

// Len is the number of added elements
func (s *Set[T]) Len() int { return len(s.parent) }

// Find returns the representative of x's component, compressing the path.
// Unknown elements fail with ErrElementNotFound so callers can catch stale
// references instead of silently growing the forest
func (s *Set[T]) Find(x T) (T, error) {
	root, ok := s.findRoot(x)
	if !ok {
		var zero T
		return zero, ErrElementNotFound
	}
	// second pass re-parents everything on the walk directly to the root
	for s.parent[x] != root {
		x, s.parent[x] = s.parent[x], root
	}
	return root, nil
}

func (s *Set[T]) findRoot(x T) (T, bool) {
	p, ok := s.parent[x]
	if !ok {
		var zero T
		return zero, false
	}
	for p != x {
		x = p
		p = s.parent[x]
	}
	return p, true
}

// Union merges the components of a and b, adding either if unknown.
// Returns true when two distinct components were merged
func (s *Set[T]) Union(a, b T) bool {
	s.Add(a)
	s.Add(b)
	ra, _ := s.Find(a)
	rb, _ := s.Find(b)
	if ra == rb {
		return false
	}
	// attach the shallower tree under the deeper one
	switch {
	case s.rank[ra] < s.rank[rb]:
		s.parent[ra] = rb
	case s.rank[ra] > s.rank[rb]:
		s.parent[rb] = ra
	default:
		s.parent[rb] = ra
		s.rank[ra]++
	}
	return true
}

// Connected reports whether a and b share a component; unknown elements fail
func (s *Set[T]) Connected(a, b T) (bool, error) {
	ra, err := s.Find(a)
	if err != nil {
		return false, err
	}
	rb, err := s.Find(b)
	if err != nil {
		return false, err
	}
	return ra == rb, nil
}

// Groups enumerates components with at least minSize members. minSize < 1 is
// treated as 1. Component membership order is unspecified; the component list
// is ordered by size descending to keep output stable for callers that log it
func (s *Set[T]) Groups(minSize int) [][]T {
	if minSize < 1 {
		minSize = 1
	}
	byRoot := make(map[T][]T, len(s.parent))
	for x := range s.parent {
		root, _ := s.Find(x)
		byRoot[root] = append(byRoot[root], x)
	}
	out := make([][]T, 0, len(byRoot))
	for _, members := range byRoot {
		if len(members) >= minSize {
			out = append(out, members)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}
