// Package strings collects small string helpers shared across the tree
package strings

import std "strings"

// IfEmpty returns def when in has no elements, otherwise in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// Contains reports whether sub is within s
func Contains(s, sub string) bool { return std.Contains(s, sub) }

// MustString returns s if it has non-whitespace content, otherwise panics.
// name shows up in the panic message so the missing value is identifiable
func MustString(s string, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// MustPrefix normalizes and asserts a mount path like /scans or /repos:
// one leading slash, no trailing slash. Panics on empty input
func MustPrefix(s string) string {
	s = std.TrimSpace(s)
	s = "/" + std.Trim(s, " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}

// SQLNullPtr returns nil when ps is nil or blank so the column stores NULL,
// else the dereferenced string
func SQLNullPtr(ps *string) any {
	if ps == nil || std.TrimSpace(*ps) == "" {
		return nil
	}
	return *ps
}

// Deref returns "" when ps is nil, else *ps
func Deref(ps *string) string {
	if ps == nil {
		return ""
	}
	return *ps
}
