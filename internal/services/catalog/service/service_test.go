package service

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	"dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/catalog/repo"
)

func newCatalog(t *testing.T) *Service {
	t.Helper()

	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{
		DB: store.DBConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "catalog.sqlite")},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return New(s.DB, repo.NewStore())
}

func strPtr(s string) *string { return &s }

func upsertInput(repoID int64, number int) domain.PRUpsert {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return domain.PRUpsert{
		RepoID:    repoID,
		Number:    number,
		Title:     "add rate limiter",
		Body:      "wraps the client",
		Author:    "octocat",
		DiffHash:  strPtr("abc123"),
		FilePaths: []string{"a.go", "b.go"},
		State:     "open",
		ETag:      strPtr(`W/"etag-1"`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestTrack_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	first, err := c.Track(ctx, "acme", "widget")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	second, err := c.Track(ctx, "acme", "widget")
	if err != nil {
		t.Fatalf("re-track: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("track not idempotent: %d vs %d", first.ID, second.ID)
	}

	other, err := c.Track(ctx, "acme", "gadget")
	if err != nil {
		t.Fatalf("track other: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("distinct repos share an id")
	}

	list, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list returned %d repos, want 2", len(list))
	}
	if list[0].FullName() != "acme/widget" {
		t.Fatalf("list order or name wrong: %s", list[0].FullName())
	}
}

func TestSetLastScanAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)

	rep, _ := c.Track(ctx, "acme", "widget")
	at := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	if err := c.SetLastScanAt(ctx, rep.ID, at); err != nil {
		t.Fatalf("set last scan: %v", err)
	}

	got, err := c.Get(ctx, rep.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastScanAt == nil || !got.LastScanAt.Equal(at) {
		t.Fatalf("last scan at = %v, want %v", got.LastScanAt, at)
	}

	if err := c.SetLastScanAt(ctx, 999, at); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpsertPR_InsertThenUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)
	rep, _ := c.Track(ctx, "acme", "widget")

	up := upsertInput(rep.ID, 7)
	id1, err := c.Upsert(ctx, up)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := c.GetByNumber(ctx, rep.ID, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != id1 || got.Title != "add rate limiter" || got.DiffHash != "abc123" {
		t.Fatalf("insert mismatch: %+v", got)
	}
	if !reflect.DeepEqual(got.FilePaths, []string{"a.go", "b.go"}) {
		t.Fatalf("file paths = %v", got.FilePaths)
	}

	// refresh with new content; same row id
	up.Title = "add rate limiter v2"
	up.DiffHash = strPtr("def456")
	up.UpdatedAt = up.UpdatedAt.Add(time.Hour)
	id2, err := c.Upsert(ctx, up)
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("upsert created a new row: %d vs %d", id2, id1)
	}

	got, _ = c.GetByNumber(ctx, rep.ID, 7)
	if got.Title != "add rate limiter v2" || got.DiffHash != "def456" {
		t.Fatalf("update mismatch: %+v", got)
	}
	if !got.UpdatedAt.Equal(up.UpdatedAt) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, up.UpdatedAt)
	}
}

// TestUpsertPR_PreservesDetectionCheckpoints pins the contract that ingest
// writes never clear embed_hash or intent_summary
func TestUpsertPR_PreservesDetectionCheckpoints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)
	rep, _ := c.Track(ctx, "acme", "widget")

	id, err := c.Upsert(ctx, upsertInput(rep.ID, 3))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := c.SetIntentSummary(ctx, id, "adds a limiter"); err != nil {
		t.Fatalf("set intent: %v", err)
	}
	if err := c.SetEmbedHash(ctx, id, "feedbeef00112233"); err != nil {
		t.Fatalf("set embed hash: %v", err)
	}

	// a later ingest pass rewrites metadata
	up := upsertInput(rep.ID, 3)
	up.Title = "changed"
	if _, err := c.Upsert(ctx, up); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := c.GetByNumber(ctx, rep.ID, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IntentSummary != "adds a limiter" {
		t.Fatalf("intent summary lost: %q", got.IntentSummary)
	}
	if got.EmbedHash != "feedbeef00112233" {
		t.Fatalf("embed hash lost: %q", got.EmbedHash)
	}
}

func TestUpsertPR_NullDiffHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)
	rep, _ := c.Track(ctx, "acme", "widget")

	up := upsertInput(rep.ID, 9)
	up.DiffHash = nil // oversized diff: file paths only
	if _, err := c.Upsert(ctx, up); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := c.GetByNumber(ctx, rep.ID, 9)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DiffHash != "" {
		t.Fatalf("diff hash = %q, want empty", got.DiffHash)
	}
}

func TestGetByNumbers_SkipsUnknown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newCatalog(t)
	rep, _ := c.Track(ctx, "acme", "widget")

	for _, n := range []int{1, 2, 5} {
		if _, err := c.Upsert(ctx, upsertInput(rep.ID, n)); err != nil {
			t.Fatalf("upsert %d: %v", n, err)
		}
	}

	got, err := c.GetByNumbers(ctx, rep.ID, []int{5, 2, 404})
	if err != nil {
		t.Fatalf("get by numbers: %v", err)
	}
	if len(got) != 2 || got[0].Number != 2 || got[1].Number != 5 {
		t.Fatalf("unexpected result: %+v", got)
	}

	if empty, err := c.GetByNumbers(ctx, rep.ID, nil); err != nil || empty != nil {
		t.Fatalf("empty input should be a no-op, got (%v, %v)", empty, err)
	}
}
