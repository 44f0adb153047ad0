package httpkit

import (
	"net/http"
	"strconv"

	perr "dupehound/internal/platform/errors"
	phttp "dupehound/internal/platform/net/http"
)

// Param reads a URL parameter through the platform seam
func Param(r *http.Request, name string) string { return phttp.Param(r, name) }

// ParamInt64 parses a positive numeric path segment such as a row id
func ParamInt64(r *http.Request, name string) (int64, error) {
	raw := Param(r, name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, perr.InvalidArgf("invalid %s %q", name, raw)
	}
	return n, nil
}
