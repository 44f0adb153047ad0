package httpkit

import (
	"net/http"
	"testing"

	phttp "dupehound/internal/platform/net/http"
)

// fakeMountRouter satisfies the platform Router surface and records what was mounted
type fakeMountRouter struct {
	prefixes  []string
	useCalls  int
	lastMWLen int
	mountHits int

	verbCalls []mountRec
}

func (f *fakeMountRouter) Route(prefix string, fn func(Router)) {
	f.prefixes = append(f.prefixes, prefix)
	fn(f) // pass itself as subrouter
}

func (f *fakeMountRouter) Group(fn func(Router)) { fn(f) }
func (f *fakeMountRouter) Use(mw ...func(http.Handler) http.Handler) {
	f.useCalls++
	f.lastMWLen = len(mw)
}

func (f *fakeMountRouter) record(verb, path string, h phttp.Handler) {
	f.verbCalls = append(f.verbCalls, mountRec{verb, path, h})
}

func (f *fakeMountRouter) Get(path string, h phttp.Handler)  { f.record("GET", path, h) }
func (f *fakeMountRouter) Post(path string, h phttp.Handler) { f.record("POST", path, h) }

func (f *fakeMountRouter) Handle(path string, _ http.Handler) { f.record("HANDLE", path, nil) }
func (f *fakeMountRouter) Mux() http.Handler                  { return http.NewServeMux() }

func TestMountUnder_AppliesMiddlewareAndCallsMount(t *testing.T) {
	root := &fakeMountRouter{}

	mwA := func(next http.Handler) http.Handler { return next }
	mwB := func(next http.Handler) http.Handler { return next }

	MountUnder(root, "/scans", []func(http.Handler) http.Handler{mwA, mwB}, func(sub Router) {
		sub.Get("/ping", phttp.Handle(func(r *http.Request) phttp.Response {
			return phttp.NoContent()
		}))
	})

	if len(root.prefixes) != 1 || root.prefixes[0] != "/scans" {
		t.Fatalf("expected Route to be called with /scans, got %v", root.prefixes)
	}
	if root.useCalls != 1 || root.lastMWLen != 2 {
		t.Fatalf("expected Use once with 2 middleware, got calls=%d len=%d", root.useCalls, root.lastMWLen)
	}
	if len(root.verbCalls) != 1 {
		t.Fatalf("expected one route registered in mount closure, got %d", len(root.verbCalls))
	}
	first := root.verbCalls[0]
	if first.verb != "GET" || first.path != "/ping" || first.h == nil {
		t.Fatalf("expected GET /ping with non-nil handler, got %+v", first)
	}
}

func TestMountUnder_NoMiddlewareSkipsUse(t *testing.T) {
	root := &fakeMountRouter{}

	MountUnder(root, "/x", nil, func(sub Router) {
		sub.Post("/purge", phttp.Handle(func(r *http.Request) phttp.Response {
			return phttp.NoContent()
		}))
	})

	if root.useCalls != 0 {
		t.Fatalf("expected Use to not be called when mw is empty, got %d", root.useCalls)
	}
	if len(root.prefixes) != 1 || root.prefixes[0] != "/x" {
		t.Fatalf("expected Route to be called with /x, got %v", root.prefixes)
	}
	if len(root.verbCalls) != 1 || root.verbCalls[0].verb != "POST" || root.verbCalls[0].path != "/purge" {
		t.Fatalf("expected POST /purge registration, got %+v", root.verbCalls)
	}
}

func TestMountAPI_PrefixesVersion(t *testing.T) {
	cases := []struct {
		version string
		want    string
	}{
		{"v2", "/api/v2"},
		{"/v3", "/api/v3"}, // leading slash trimmed
	}

	for _, tc := range cases {
		r := &fakeMountRouter{}
		MountAPI(r, tc.version, nil, func(api Router) { r.mountHits++ })

		if len(r.prefixes) != 1 || r.prefixes[0] != tc.want {
			t.Fatalf("version %q: expected prefix %q, got %v", tc.version, tc.want, r.prefixes)
		}
		if r.useCalls != 0 {
			t.Fatalf("version %q: Use called for empty middleware", tc.version)
		}
		if r.mountHits != 1 {
			t.Fatalf("version %q: mount closure invoked %d times", tc.version, r.mountHits)
		}
	}
}

func TestMountAPIV1_Convenience(t *testing.T) {
	r := &fakeMountRouter{}
	mw := func(next http.Handler) http.Handler { return next }

	MountAPIV1(r, []func(http.Handler) http.Handler{mw}, func(api Router) { r.mountHits++ })

	if len(r.prefixes) != 1 || r.prefixes[0] != "/api/v1" {
		t.Fatalf("expected prefix /api/v1, got %v", r.prefixes)
	}
	if r.useCalls != 1 || r.lastMWLen != 1 {
		t.Fatalf("expected Use once with 1 middleware, got calls=%d len=%d", r.useCalls, r.lastMWLen)
	}
	if r.mountHits != 1 {
		t.Fatalf("expected mount closure to be invoked once, got %d", r.mountHits)
	}
}
