package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	pnet "dupehound/internal/platform/net"
)

// KeyPort resolves an account API key to the account id
type KeyPort interface {
	Resolve(ctx context.Context, key string) (int64, error)
}

// AccountAuth resolves the account key on requests that present one and
// stashes the account id on the context. With require set, requests without
// a key are rejected; without it they pass through anonymous. A nil port
// disables the middleware entirely
func AccountAuth(p KeyPort, require bool, write func(w http.ResponseWriter, status int, body any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := requestKey(r)
			if key == "" {
				if require {
					status, body := pnet.Error(perr.Unauthorizedf("missing api key"), pnet.RequestID(r.Context()))
					write(w, status, body)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			id, err := p.Resolve(r.Context(), key)
			if err != nil {
				// unknown and malformed keys read the same to the caller
				status, body := pnet.Error(perr.Unauthorizedf("invalid api key"), pnet.RequestID(r.Context()))
				write(w, status, body)
				return
			}
			ctx := pnet.WithAccount(r.Context(), id)
			ctx = logger.WithRequest(ctx, pnet.RequestID(ctx), strconv.FormatInt(id, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestKey pulls the api key from X-API-Key or a bearer Authorization header
func requestKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	authz := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authz[len(prefix):])
}
