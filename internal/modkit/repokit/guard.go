package repokit

import (
	"context"
	"fmt"
	"time"
)

type guarder interface {
	Guard(context.Context) error
}

// MustGuard verifies storage readiness at startup and panics on failure.
// When ctx carries no deadline a 5s one is applied, so a hung backend fails
// the boot instead of blocking it
func MustGuard(ctx context.Context, st guarder) {
	if st == nil {
		panic("repokit: nil store")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := st.Guard(ctx); err != nil {
		panic(fmt.Errorf("dependency guard failed: %w", err))
	}
}
