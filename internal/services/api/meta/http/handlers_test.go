package http

import (
	stdctx "context"
	"errors"
	"reflect"
	"testing"
	"time"

	"dupehound/internal/modkit/module"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(stdctx.Context) error { return f.err }

func TestHealth(t *testing.T) {
	h := &handlers{deps: Deps{ServiceName: "dupehound", StartedAt: time.Now().Add(-time.Minute)}}

	out, err := h.health(nil)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp, ok := out.(HealthResponse)
	if !ok {
		t.Fatalf("expected HealthResponse, got %T", out)
	}
	if !resp.OK || resp.Service != "dupehound" {
		t.Fatalf("bad health payload: %+v", resp)
	}
	if resp.Started == "" || resp.Now == "" {
		t.Fatalf("expected timestamps, got %+v", resp)
	}
}

func TestReady_DBStates(t *testing.T) {
	cases := []struct {
		name        string
		db          any
		wantOverall string
		wantCheck   string
	}{
		{"nil db skipped", nil, "ok", "skipped"},
		{"pinger ok", fakePinger{}, "ok", "ok"},
		{"pinger failing", fakePinger{err: errors.New("closed")}, "fail", "fail"},
		{"non-pinger unknown", 42, "ok", "unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := &handlers{deps: Deps{DB: tc.db}}
			out, err := h.ready(nil)
			if err != nil {
				t.Fatalf("ready: %v", err)
			}
			resp := out.(ReadyResponse)
			if resp.Status != tc.wantOverall {
				t.Fatalf("overall = %q, want %q", resp.Status, tc.wantOverall)
			}
			if len(resp.Checks) != 1 || resp.Checks[0].Name != "db" || resp.Checks[0].Status != tc.wantCheck {
				t.Fatalf("checks = %+v", resp.Checks)
			}
		})
	}
}

func TestService_ListsRegisteredModules(t *testing.T) {
	module.Reset()
	t.Cleanup(module.Reset)
	module.Register("scans", nil)
	module.Register("repos", nil)

	h := &handlers{deps: Deps{ServiceName: "dupehound", StartedAt: time.Now().Add(-5 * time.Second)}}

	out, err := h.service(nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	resp := out.(ServiceResponse)
	if resp.Name != "dupehound" {
		t.Fatalf("name = %q", resp.Name)
	}
	if resp.Uptime < 4 {
		t.Fatalf("uptime = %d, want at least 4s", resp.Uptime)
	}
	if want := []string{"repos", "scans"}; !reflect.DeepEqual(resp.Modules, want) {
		t.Fatalf("modules = %v, want %v", resp.Modules, want)
	}
}

func TestVersion(t *testing.T) {
	h := &handlers{}
	out, err := h.version(nil)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out == nil {
		t.Fatalf("expected version payload")
	}
}
