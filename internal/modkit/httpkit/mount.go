package httpkit

import (
	"net/http"
	"strings"
)

// MountUnder mounts a subrouter at prefix, applies per-scope middleware,
// then invokes mount to register routes on the scoped router
func MountUnder(r Router, prefix string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route(prefix, func(sub Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	})
}

// MountAPI mounts a subrouter under /api/{version}
//
// example:
//
//	httpkit.MountAPIV1(r, httpkit.CommonStack(nil), func(api httpkit.Router) {
//	  scans.MountRoutes(api)
//	})
func MountAPI(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountUnder(r, "/api/"+strings.TrimPrefix(version, "/"), mw, mount)
}

// MountAPIV1 is a convenience for MountAPI with version v1
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	MountAPI(r, "v1", mw, mount)
}
