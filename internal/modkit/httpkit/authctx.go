package httpkit

import (
	"net/http"

	perrs "dupehound/internal/platform/errors"
	pnet "dupehound/internal/platform/net"
)

// Account returns the key-authenticated account id from the request context
func Account(r *http.Request) (int64, error) {
	id := pnet.AccountID(r.Context())
	if id == 0 {
		return 0, perrs.Unauthorizedf("missing api key")
	}
	return id, nil
}

// MustAccount returns the authenticated account id or panics
// only use on routes behind AccountAuth with require set
func MustAccount(r *http.Request) int64 {
	id, err := Account(r)
	if err != nil {
		panic(err)
	}
	return id
}

// CheckAccount verifies that a key-authenticated request acts on its own
// account. Anonymous requests pass; strict deployments reject those in the
// middleware instead
func CheckAccount(r *http.Request, accountID int64) error {
	if authed := pnet.AccountID(r.Context()); authed != 0 && authed != accountID {
		return perrs.Unauthorizedf("api key does not grant account %d", accountID)
	}
	return nil
}
