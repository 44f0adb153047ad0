// Package httpkit provides tiny HTTP helpers and adapters
package httpkit

import (
	"context"

	perrs "dupehound/internal/platform/errors"
)

// KeyFunc adapts a plain resolver function to middleware.KeyPort so callers
// can wire account lookup without declaring a type
type KeyFunc func(ctx context.Context, key string) (int64, error)

// Resolve implements middleware.KeyPort
// a nil func reads as an unknown key rather than a panic
func (f KeyFunc) Resolve(ctx context.Context, key string) (int64, error) {
	if f == nil {
		return 0, perrs.Unauthorizedf("invalid api key")
	}
	return f(ctx, key)
}
