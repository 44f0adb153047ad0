package service

import (
	"strings"
	"time"
)

// retry bases. Rate limited work backs off much harder than ordinary
// failures so a provider window can actually reset
const (
	baseDelay          = time.Second
	rateLimitBaseDelay = 60 * time.Second
)

// isRateLimited matches the error surface of the providers: HTTP 429 text,
// explicit rate/token limit phrases and batch queue limit messages of the
// form "enqueued ... limit"
func isRateLimited(msg string) bool {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "429"):
		return true
	case strings.Contains(m, "rate limit"):
		return true
	case strings.Contains(m, "token limit"):
		return true
	case strings.Contains(m, "enqueued") && strings.Contains(m, "limit"):
		return true
	}
	return false
}

// retryDelay computes base * 2^(attempts-1) clamped to maxBackoff.
// attempts is the count already consumed, so the first retry waits one base
func retryDelay(errMsg string, attempts int, maxBackoff time.Duration) time.Duration {
	base := baseDelay
	if isRateLimited(errMsg) {
		base = rateLimitBaseDelay
	}
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
