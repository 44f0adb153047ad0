package httpc

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryAfter parses Retry-After given either as delay seconds or an HTTP date.
// Unparseable or elapsed values yield zero so the caller falls through
func retryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
