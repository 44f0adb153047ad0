package module

import "dupehound/internal/platform/config"

// Options carries process wide provider knobs
type Options struct {
	GitHubMaxDiffBytes  int64
	GitHubMaxConcurrent int
	GitHubMaxRetries    int

	ProviderMaxConcurrent int
	ProviderMaxRetries    int
}

// FromConfig reads the provider knobs; sizes accept humanized strings
func FromConfig(cfg config.Conf) Options {
	gh := cfg.Prefix("GITHUB_")
	pr := cfg.Prefix("PROVIDER_")
	return Options{
		GitHubMaxDiffBytes:  int64(gh.MayBytes("MAX_DIFF_BYTES", 2<<20)),
		GitHubMaxConcurrent: gh.MayInt("MAX_CONCURRENT", 10),
		GitHubMaxRetries:    gh.MayInt("MAX_RETRIES", 3),

		ProviderMaxConcurrent: pr.MayInt("MAX_CONCURRENT", 4),
		ProviderMaxRetries:    pr.MayInt("MAX_RETRIES", 3),
	}
}
