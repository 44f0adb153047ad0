// Package raw is the bootstrap env reader. It must stay free of imports on
// the logger package (logger configures itself from it), so malformed values
// fall back to defaults silently
package raw

import (
	"os"
	"strconv"
	"strings"
)

// Conf is a namespaced view over environment variables ("LOG_", "API_")
type Conf struct{ prefix string }

// New returns a root Conf with no prefix
func New() Conf { return Conf{} }

// Prefix returns a child Conf that prepends p to every key
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

// Get returns the trimmed value or def when missing/empty
func (c Conf) Get(key, def string) string {
	v := strings.TrimSpace(os.Getenv(c.key(key)))
	if v == "" {
		return def
	}
	return v
}

// GetBool parses 1/true/yes as true; anything else is false, empty is def
func (c Conf) GetBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(c.key(key))))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

// GetInt parses a non-negative integer; malformed or negative values fall
// back to def
func (c Conf) GetInt(key string, def int) int {
	s := strings.TrimSpace(os.Getenv(c.key(key)))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
