package http

import (
	stdhttp "net/http"

	mw "github.com/go-chi/chi/v5/middleware"
)

// MountProfiler exposes chi's pprof bundle under prefix ("/debug") when
// enabled. Stays unmounted otherwise so the routes 404 in production
func MountProfiler(r Router, prefix string, enabled bool) {
	if !enabled {
		return
	}
	h := stdhttp.StripPrefix(prefix, mw.Profiler())

	// cover the bare prefix and everything under it
	r.Get(prefix, func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		h.ServeHTTP(w, req)
	})
	r.Get(prefix+"/*", func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		h.ServeHTTP(w, req)
	})
}
