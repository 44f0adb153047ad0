package middleware_test

import (
	"compress/flate"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dupehound/internal/platform/net/middleware"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestWrappers_ReturnHandlers(t *testing.T) {
	if middleware.RequestID() == nil ||
		middleware.RealIP() == nil ||
		middleware.Timeout(time.Second) == nil ||
		middleware.NoCache() == nil ||
		middleware.RedirectSlashes() == nil ||
		middleware.StripSlashes() == nil ||
		middleware.Heartbeat("/health") == nil {
		t.Fatal("expected non nil handlers from wrappers")
	}
}

func TestRequestID_PopulatesContext(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chimw.GetReqID(r.Context()) == "" {
			t.Fatalf("expected a request id on context")
		}
	})

	rr := httptest.NewRecorder()
	middleware.RequestID()(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestNoCache_SetsCacheControl(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	rr := httptest.NewRecorder()
	middleware.NoCache()(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Header().Get("Cache-Control") == "" {
		t.Fatal("expected Cache-Control header")
	}
}

func TestCompress_EncodesWhenAccepted(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		// body must be big enough to trigger compression
		_, _ = io.WriteString(w, strings.Repeat("a", 4<<10))
	})

	mw := middleware.Compress(flate.BestSpeed)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()

	mw(h).ServeHTTP(rr, req)

	if rr.Result().Header.Get("Content-Encoding") == "" {
		t.Fatalf("expected Content-Encoding to be set")
	}
}

func TestCORS_DefaultsFillMissing(t *testing.T) {
	cors := middleware.CORS(middleware.CORSOptions{
		AllowedOrigins: []string{"https://example.com"},
		// other fields left empty to exercise the defaults
	})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key")

	rr := httptest.NewRecorder()
	cors(h).ServeHTTP(rr, req)

	if rr.Code != 200 && rr.Code != 204 {
		t.Fatalf("expected 200 or 204 got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("expected Access-Control-Allow-Methods to be set")
	}
	if rr.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatal("expected Access-Control-Allow-Headers to include the requested key header")
	}
}

func TestHeartbeat_AnswersConfiguredPath(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("heartbeat should short-circuit before the handler")
	})

	rr := httptest.NewRecorder()
	middleware.Heartbeat("/health")(h).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from heartbeat got %d", rr.Code)
	}
}
