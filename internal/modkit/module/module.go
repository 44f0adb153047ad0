// Package module defines the minimal contract for a modkit module and a
// registry for the port sets modules expose to each other
package module

import (
	phttp "dupehound/internal/platform/net/http"
)

// Module is the contract every service module satisfies. Name identifies the
// module in the registry, Ports exposes its wiring surface, and MountRoutes
// attaches any HTTP routes (a no-op for headless modules like the worker)
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
