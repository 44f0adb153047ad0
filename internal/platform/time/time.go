// Package time contains time related helpers
package time

import "time"

// SQLFormat is the fixed width UTC layout timestamps are stored with.
// Fixed fractional digits keep lexicographic order equal to chronological
// order, which ORDER BY created_at relies on
const SQLFormat = "2006-01-02T15:04:05.000000000Z"

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Format renders t for storage
func Format(t time.Time) string { return t.UTC().Format(SQLFormat) }

// FormatPtr renders t for storage, mapping nil and zero to nil for NULL columns
func FormatPtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return Format(*t)
}

// Parse reads a stored timestamp back; it accepts any RFC3339 flavour
func Parse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ParsePtr reads an optional stored timestamp back. Empty input maps to nil;
// unparseable input also maps to nil rather than failing a whole row scan
func ParsePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := Parse(*s)
	if err != nil {
		return nil
	}
	return &t
}
