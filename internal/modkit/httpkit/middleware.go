package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	phttp "dupehound/internal/platform/net/http"
	"dupehound/internal/platform/net/middleware"
)

// CommonStack is the baseline middleware chain every mounted module shares.
// corsOrigins narrows cross-origin access; empty allows any origin. Auth
// layers compose on top of it in main
func CommonStack(corsOrigins []string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// correlation first so everything downstream can log request_id
		middleware.RequestID(),
		middleware.RealIP(),

		// panics become JSON 500s instead of dropped connections
		middleware.RecoverJSON,

		middleware.NoCache(),

		// one structured line per request
		middleware.AccessLog(middleware.AccessLogOptions{Slow: 500 * time.Millisecond}),

		middleware.CORS(middleware.CORSOptions{AllowedOrigins: corsOrigins}),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
		middleware.RedirectSlashes(),
		middleware.StripSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}

// AccountAuth wires the api key middleware to the platform JSON writer
func AccountAuth(p middleware.KeyPort, require bool) func(http.Handler) http.Handler {
	// middleware expects write func(w http.ResponseWriter, status int, body any)
	// phttp.JSON matches that signature
	return middleware.AccountAuth(p, require, phttp.JSON)
}
