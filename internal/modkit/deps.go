// Package modkit provides module wiring and core deps
package modkit

import (
	"dupehound/internal/modkit/repokit"
	"dupehound/internal/platform/config"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	DB  repokit.TxRunner

	// Metrics is optional; nil means counters are dropped
	Metrics *metrics.Metrics
}
