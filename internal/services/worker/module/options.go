package module

import (
	"time"

	"dupehound/internal/platform/config"
)

// Options controls the worker loop
type Options struct {
	PollInterval time.Duration
	MaxBackoff   time.Duration
}

// FromConfig reads with WORKER_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("WORKER_")
	return Options{
		PollInterval: c.MayDuration("POLL_INTERVAL", 2*time.Second),
		MaxBackoff:   c.MayDuration("MAX_BACKOFF", time.Hour),
	}
}
