package net_test

import (
	"net/http"
	"testing"

	perr "dupehound/internal/platform/errors"
	pnet "dupehound/internal/platform/net"
)

func TestReply_BuildsSuccessEnvelope(t *testing.T) {
	data := map[string]any{"repo": "octo/widgets"}

	cases := []struct {
		name     string
		status   int
		data     any
		wantData bool
	}{
		{"ok", http.StatusOK, data, true},
		{"created", http.StatusCreated, data, true},
		{"accepted empty", http.StatusAccepted, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, w := pnet.Reply(tc.status, tc.data, "req-1")

			if status != tc.status {
				t.Fatalf("status %d want %d", status, tc.status)
			}
			if w.StatusCode != tc.status || w.Status != http.StatusText(tc.status) {
				t.Fatalf("wire status mismatch: %+v", w)
			}
			if w.RequestID != "req-1" {
				t.Fatalf("req id %q want req-1", w.RequestID)
			}
			if w.Error != "" || w.Code != 0 {
				t.Fatalf("success envelope carries error fields: %+v", w)
			}
			if tc.wantData {
				m, ok := w.Data.(map[string]any)
				if !ok || m["repo"] != "octo/widgets" {
					t.Fatalf("data mismatch: %+v", w.Data)
				}
			} else if w.Data != nil {
				t.Fatalf("expected empty data, got %v", w.Data)
			}
		})
	}
}

func TestError_NilFallsBackToOK(t *testing.T) {
	status, w := pnet.Error(nil, "req-2")

	if status != http.StatusOK {
		t.Fatalf("status %d want %d", status, http.StatusOK)
	}
	if w.Error != "" || w.Code != 0 {
		t.Fatalf("expected no error/code, got error=%q code=%d", w.Error, w.Code)
	}
	if w.RequestID != "req-2" {
		t.Fatalf("req id %q want req-2", w.RequestID)
	}
}

func TestError_ClassifiedErrorMapped(t *testing.T) {
	err := perr.New(perr.ErrorCodeUnauthorized, "not allowed")

	status, w := pnet.Error(err, "req-3")

	if status != http.StatusUnauthorized {
		t.Fatalf("status %d want %d", status, http.StatusUnauthorized)
	}
	if w.StatusCode != http.StatusUnauthorized || w.Status != http.StatusText(http.StatusUnauthorized) {
		t.Fatalf("wire status mismatch: %+v", w)
	}
	if w.Code != perr.ErrorCodeUnauthorized {
		t.Fatalf("code %v want %v", w.Code, perr.ErrorCodeUnauthorized)
	}
	if w.Error == "" {
		t.Fatalf("expected error message to be set")
	}
	if w.Data != nil {
		t.Fatalf("expected nil data on error, got %v", w.Data)
	}
	if w.RequestID != "req-3" {
		t.Fatalf("req id %q want req-3", w.RequestID)
	}
}

func TestError_UnclassifiedDefaultsTo500(t *testing.T) {
	status, w := pnet.Error(errPlain{}, "req-4")

	if status != http.StatusInternalServerError {
		t.Fatalf("status %d want %d", status, http.StatusInternalServerError)
	}
	if w.Error == "" {
		t.Fatalf("expected error message to be set")
	}
}

type errPlain struct{}

func (errPlain) Error() string { return "boom" }
