package github

import (
	"io"
	"net/http"
	"strconv"
	"time"

	perr "dupehound/internal/platform/errors"
)

// StatusError wraps unexpected HTTP responses from GitHub
type StatusError struct {
	Status int
	Body   string
	Err    error
}

// Error interface
func (e *StatusError) Error() string { return e.Err.Error() }

// Unwrap interface
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// statusErr reads a short body tail for diagnostics and codes the error
func (c *Client) statusErr(resp *http.Response, path string) error {
	tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	code := perr.ErrorCodeUnknown
	switch resp.StatusCode {
	case http.StatusNotFound:
		code = perr.ErrorCodeNotFound
	case http.StatusUnauthorized:
		code = perr.ErrorCodeUnauthorized
	case http.StatusForbidden, http.StatusTooManyRequests:
		code = perr.ErrorCodeTooManyRequests
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		code = perr.ErrorCodeUnavailable
	}
	return &StatusError{
		Status: resp.StatusCode,
		Body:   string(tail),
		Err:    perr.Newf(code, "github %s returned %d", path, resp.StatusCode),
	}
}

// parseRateHeaders reads GitHub's primary quota headers. seen is false when
// the response carried no X-RateLimit-Remaining at all
func parseRateHeaders(h http.Header) (remaining int, reset time.Time, seen bool) {
	rs := h.Get("X-RateLimit-Remaining")
	if rs == "" {
		return 0, time.Time{}, false
	}
	remaining = atoi(rs)
	if sec := atoi(h.Get("X-RateLimit-Reset")); sec > 0 {
		reset = time.Unix(int64(sec), 0).UTC()
	}
	return remaining, reset, true
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}
