package module

import "dupehound/internal/platform/config"

// Options holds configuration settings for the detect module
type Options struct {
	// OutputReserve is held back from every chat prompt budget so the
	// model has room to answer
	OutputReserve int
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	df := cfg.Prefix("CORE_DETECT_")
	return Options{
		OutputReserve: df.MayInt("OUTPUT_RESERVE", 1024),
	}
}
