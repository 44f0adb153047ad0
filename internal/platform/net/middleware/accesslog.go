package middleware

import (
	"net/http"
	"time"

	"dupehound/internal/platform/logger"
	pnet "dupehound/internal/platform/net"
)

// AccessLogOptions tunes the structured access log
type AccessLogOptions struct {
	// Slow promotes requests taking >= Slow to warn level; 0 disables it
	Slow time.Duration
}

// captureWriter records the status and byte count a handler writes
type captureWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(b)
	if n > 0 {
		cw.bytes += n
	}
	return n, err
}

// AccessLog emits one zerolog line per request with method, path, status,
// elapsed time and bytes written. The chi request id is attached when the
// RequestID middleware runs upstream of this one
func AccessLog(opt AccessLogOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			evt := log.Info()
			if opt.Slow > 0 && elapsed >= opt.Slow {
				evt = log.Warn()
			}
			if reqID := pnet.RequestID(r.Context()); reqID != "" {
				evt = evt.Str("request_id", reqID)
			}
			evt.Int("status", cw.status).
				Dur("elapsed", elapsed).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("bytes", cw.bytes).
				Msg("request done")
		})
	}
}
