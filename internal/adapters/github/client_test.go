package github

import (
	"context"
	json "encoding/json/v2"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	perr "dupehound/internal/platform/errors"
)

func testClient(t *testing.T, handler http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	if opts.Token == "" {
		opts.Token = "tok"
	}
	return NewClient(opts)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func prPage(start, n int) []PR {
	out := make([]PR, n)
	for i := range out {
		out[i] = PR{
			ID:     int64(1000 + start + i),
			Number: start + i,
			Title:  fmt.Sprintf("change %d", start+i),
			State:  "open",
			User:   User{Login: "octocat"},
		}
	}
	return out
}

func TestListOpenPRs_PaginatesUntilShortPage(t *testing.T) {
	t.Parallel()

	var pages []string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got != "2022-11-28" {
			t.Errorf("api version = %q", got)
		}
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		switch page {
		case "1":
			writeJSON(t, w, prPage(1, 100))
		case "2":
			writeJSON(t, w, prPage(101, 40))
		default:
			t.Errorf("unexpected page %q", page)
			writeJSON(t, w, []PR{})
		}
	})

	c := testClient(t, h, Options{})
	got, err := c.ListOpenPRs(context.Background(), "acme", "widgets", 0)
	if err != nil {
		t.Fatalf("ListOpenPRs: %v", err)
	}
	if len(got) != 140 {
		t.Fatalf("len = %d, want 140", len(got))
	}
	if len(pages) != 2 {
		t.Fatalf("pages fetched = %v, want two", pages)
	}
	if got[0].Number != 1 || got[139].Number != 140 {
		t.Fatalf("ordering off: first=%d last=%d", got[0].Number, got[139].Number)
	}
}

func TestListOpenPRs_MaxCapsResult(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "1" {
			writeJSON(t, w, prPage(1, 100))
			return
		}
		writeJSON(t, w, prPage(101, 100))
	})

	c := testClient(t, h, Options{})
	got, err := c.ListOpenPRs(context.Background(), "acme", "widgets", 120)
	if err != nil {
		t.Fatalf("ListOpenPRs: %v", err)
	}
	if len(got) != 120 || got[119].Number != 120 {
		t.Fatalf("len = %d last = %d, want 120/120", len(got), got[len(got)-1].Number)
	}
}

func TestGetPRFiles_Paginates(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/pulls/7/files") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") == "1" {
			files := make([]prFile, 100)
			for i := range files {
				files[i] = prFile{Filename: fmt.Sprintf("pkg/f%03d.go", i)}
			}
			writeJSON(t, w, files)
			return
		}
		writeJSON(t, w, []prFile{{Filename: "README.md"}})
	})

	c := testClient(t, h, Options{})
	got, err := c.GetPRFiles(context.Background(), "acme", "widgets", 7)
	if err != nil {
		t.Fatalf("GetPRFiles: %v", err)
	}
	if len(got) != 101 || got[100] != "README.md" {
		t.Fatalf("files = %d last=%q", len(got), got[len(got)-1])
	}
}

func TestGetPRDiff_OK(t *testing.T) {
	t.Parallel()

	const diff = "diff --git a/x b/x\n+new line\n"
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != acceptDiff {
			t.Errorf("Accept = %q", got)
		}
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte(diff))
	})

	c := testClient(t, h, Options{})
	got, etag, notMod, err := c.GetPRDiff(context.Background(), "acme", "widgets", 3, "")
	if err != nil || notMod {
		t.Fatalf("GetPRDiff = %v notMod=%v", err, notMod)
	}
	if got != diff || etag != `"abc123"` {
		t.Fatalf("diff/etag mismatch: %q %q", got, etag)
	}
}

func TestGetPRDiff_ETagRevalidation(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("If-None-Match"); got != `"abc123"` {
			t.Errorf("If-None-Match = %q", got)
		}
		w.Header().Set("ETag", `"abc123"`)
		w.WriteHeader(http.StatusNotModified)
	})

	c := testClient(t, h, Options{})
	diff, etag, notMod, err := c.GetPRDiff(context.Background(), "acme", "widgets", 3, `"abc123"`)
	if err != nil {
		t.Fatalf("GetPRDiff: %v", err)
	}
	if !notMod || diff != "" || etag != `"abc123"` {
		t.Fatalf("notMod=%v diff=%q etag=%q", notMod, diff, etag)
	}
}

func TestGetPRDiff_TooLarge(t *testing.T) {
	t.Parallel()

	t.Run("406 from github", func(t *testing.T) {
		t.Parallel()
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotAcceptable)
		})
		c := testClient(t, h, Options{})
		_, _, _, err := c.GetPRDiff(context.Background(), "acme", "widgets", 3, "")
		if !errors.Is(err, ErrDiffTooLarge) {
			t.Fatalf("err = %v, want ErrDiffTooLarge", err)
		}
	})

	t.Run("body over cap", func(t *testing.T) {
		t.Parallel()
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 128)))
		})
		c := testClient(t, h, Options{MaxDiffBytes: 64})
		_, _, _, err := c.GetPRDiff(context.Background(), "acme", "widgets", 3, "")
		if !errors.Is(err, ErrDiffTooLarge) {
			t.Fatalf("err = %v, want ErrDiffTooLarge", err)
		}
	})
}

func TestFetchPR_NotFoundIsCoded(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	c := testClient(t, h, Options{})
	_, err := c.FetchPR(context.Background(), "acme", "widgets", 99)
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want not-found code", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 404 {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
}

func TestThrottle_SleepsWhenQuotaLow(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0).UTC()
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "2")
		w.Header().Set("X-RateLimit-Reset", fmt.Sprint(base.Add(2*time.Second).Unix()))
		writeJSON(t, w, PR{Number: 1})
	})

	c := testClient(t, h, Options{RateBuffer: 3})
	var slept []time.Duration
	c.now = func() time.Time { return base }
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	if _, err := c.FetchPR(context.Background(), "acme", "widgets", 1); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("no quota state yet, slept %v", slept)
	}

	if _, err := c.FetchPR(context.Background(), "acme", "widgets", 1); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("slept %v, want one 2s wait until reset", slept)
	}
}

func TestClosePRWithComment_CommentsThenCloses(t *testing.T) {
	t.Parallel()

	var calls []string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/issues/"):
			var body map[string]string
			if err := json.UnmarshalRead(r.Body, &body); err != nil || body["body"] == "" {
				t.Errorf("comment body: %v %v", body, err)
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPatch:
			var body map[string]string
			if err := json.UnmarshalRead(r.Body, &body); err != nil || body["state"] != "closed" {
				t.Errorf("close body: %v %v", body, err)
			}
			writeJSON(t, w, PR{Number: 5, State: "closed"})
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	})

	c := testClient(t, h, Options{})
	err := c.ClosePRWithComment(context.Background(), "acme", "widgets", 5, "duplicate of #4")
	if err != nil {
		t.Fatalf("ClosePRWithComment: %v", err)
	}
	want := []string{
		"POST /repos/acme/widgets/issues/5/comments",
		"PATCH /repos/acme/widgets/pulls/5",
	}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}
