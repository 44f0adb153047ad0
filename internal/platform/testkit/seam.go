package testkit

import "testing"

// Swap replaces a package-level seam for the duration of the test and
// restores the original in Cleanup
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}
