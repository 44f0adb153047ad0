package module

import "dupehound/internal/platform/config"

// Options controls the jobs module
type Options struct {
	DefaultMaxRetries int
}

// FromConfig reads with JOBS_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("JOBS_")
	return Options{
		DefaultMaxRetries: c.MayInt("DEFAULT_MAX_RETRIES", 3),
	}
}
