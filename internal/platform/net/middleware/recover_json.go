package middleware

import (
	stdjson "encoding/json"
	stdhttp "net/http"
	"runtime/debug"
	"strings"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	pnet "dupehound/internal/platform/net"
)

// RecoverJSON converts panics into the standard JSON 500 envelope and logs
// the stack with the request id. Mounted instead of chi's text Recoverer so
// clients never see a non-JSON body
func RecoverJSON(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		defer func() {
			if v := recover(); v != nil {
				reqID := pnet.RequestID(r.Context())

				// indent continuation lines so the stack stays one log entry
				stack := strings.Join(strings.Split(string(debug.Stack()), "\n"), "\n\t")

				logger.C(r.Context()).Error().
					Str("request_id", reqID).
					Interface("panic", v).
					Msgf("panic recovered\n%s", stack)

				// mirror id in response header
				if reqID != "" {
					w.Header().Set("X-Request-ID", reqID)
				}

				status, body := pnet.Error(perr.PanicErrf("panic recovered"), reqID)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(status)
				_ = stdjson.NewEncoder(w).Encode(body)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
