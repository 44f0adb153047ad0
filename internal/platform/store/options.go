package store

import (
	"dupehound/internal/platform/logger"
)

// Option mutates the Store while Open assembles it. A non-nil error
// aborts Open before any backend is dialed
type Option func(*Store) error

// WithLogger sets the logger the sqlite seam and its guards log through
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}
