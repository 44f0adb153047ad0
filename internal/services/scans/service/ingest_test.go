package service

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"dupehound/internal/adapters/github"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	accounts "dupehound/internal/services/accounts/domain"
	jobsdom "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/scans/domain"
)

// fakeGitHub serves a scripted repo so ingest can be driven without the API
type fakeGitHub struct {
	mu       sync.Mutex
	prs      []github.PR
	files    map[int][]string
	diffs    map[int]string
	etags    map[int]string
	tooLarge map[int]bool
	missing  map[int]bool

	fileCalls int
	diffCalls int
}

func (f *fakeGitHub) ListOpenPRs(_ context.Context, _, _ string, max int) ([]github.PR, error) {
	if max > 0 && max < len(f.prs) {
		return f.prs[:max], nil
	}
	return f.prs, nil
}

func (f *fakeGitHub) FetchPR(_ context.Context, _, _ string, number int) (github.PR, error) {
	for _, pr := range f.prs {
		if pr.Number == number {
			return pr, nil
		}
	}
	return github.PR{}, perr.Newf(perr.ErrorCodeNotFound, "pr %d not found", number)
}

func (f *fakeGitHub) GetPRFiles(_ context.Context, _, _ string, number int) ([]string, error) {
	f.mu.Lock()
	f.fileCalls++
	f.mu.Unlock()
	if f.missing[number] {
		return nil, perr.Newf(perr.ErrorCodeNotFound, "pr %d not found", number)
	}
	return f.files[number], nil
}

func (f *fakeGitHub) GetPRDiff(_ context.Context, _, _ string, number int, etag string) (string, string, bool, error) {
	f.mu.Lock()
	f.diffCalls++
	f.mu.Unlock()
	if f.missing[number] {
		return "", "", false, perr.Newf(perr.ErrorCodeNotFound, "pr %d not found", number)
	}
	if f.tooLarge[number] {
		return "", "", false, github.ErrDiffTooLarge
	}
	if etag != "" && etag == f.etags[number] {
		return "", f.etags[number], true, nil
	}
	return f.diffs[number], f.etags[number], false, nil
}

type fakeResolver struct{ svcs *accounts.Services }

func (f *fakeResolver) Resolve(context.Context, int64) (*accounts.Services, error) {
	return f.svcs, nil
}

func ghPR(number int, updated time.Time) github.PR {
	return github.PR{
		Number:    number,
		Title:     "add retry middleware",
		Body:      "wraps outbound calls",
		State:     "open",
		User:      github.User{Login: "octocat"},
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
	}
}

func newIngester(h *harness, gh *fakeGitHub) *Ingester {
	return NewIngester(
		h.scans, h.queue, &fakeResolver{svcs: &accounts.Services{GitHub: gh}},
		h.catalog, *logger.Named("ingest-test"), nil,
	)
}

func ingestJob(t *testing.T, scanID, repoID, accountID int64) *jobsdom.Job {
	t.Helper()

	payload, err := domain.EncodePayload(domain.ScanJobPayload{
		ScanID: scanID, RepoID: repoID, AccountID: accountID, Owner: "acme", Repo: "widget",
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return &jobsdom.Job{ID: "job-ingest", Type: domain.JobTypeIngest, Payload: payload}
}

func TestOrchestrator_EnqueuesIngest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	scanJob, err := h.queue.Get(ctx, started.JobID)
	if err != nil {
		t.Fatalf("get scan job: %v", err)
	}

	orch := NewOrchestrator(h.scans, h.queue)
	res, err := orch.Process(ctx, scanJob)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	ingestID, _ := res["ingestJobId"].(string)
	if ingestID == "" {
		t.Fatalf("result = %v, want ingestJobId", res)
	}
	job, err := h.queue.Get(ctx, ingestID)
	if err != nil {
		t.Fatalf("get ingest job: %v", err)
	}
	if job.Type != domain.JobTypeIngest {
		t.Fatalf("job type = %q, want ingest", job.Type)
	}
	var p domain.ScanJobPayload
	if err := domain.DecodePayload(job.Payload, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ScanID != started.ScanID || p.Owner != "acme" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestOrchestrator_UnknownScanFails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	payload, err := domain.EncodePayload(domain.ScanJobPayload{ScanID: 9999})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	orch := NewOrchestrator(h.scans, h.queue)
	_, err = orch.Process(context.Background(), &jobsdom.Job{ID: "x", Type: domain.JobTypeScan, Payload: payload})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestIngest_FirstScanFetchesEverything(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)
	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	gh := &fakeGitHub{
		prs: []github.PR{ghPR(7, updated), ghPR(3, updated), ghPR(12, updated)},
		files: map[int][]string{
			7:  {"mw/retry.go"},
			3:  {"mw/retry.go", "mw/retry_test.go"},
			12: {"docs/README.md"},
		},
		diffs: map[int]string{
			7:  "diff --git a/mw/retry.go b/mw/retry.go\n+retry",
			3:  "diff --git a/mw/retry.go b/mw/retry.go\n+retry with tests",
			12: "diff --git a/docs/README.md b/docs/README.md\n+docs",
		},
		etags: map[int]string{7: `W/"e7"`, 3: `W/"e3"`, 12: `W/"e12"`},
	}
	ing := newIngester(h, gh)

	res, err := ing.Process(ctx, ingestJob(t, started.ScanID, repoID, accountID))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if got := res["prCount"]; got != 3 {
		t.Fatalf("prCount = %v, want 3", got)
	}
	if got := res["completed"]; got != int64(3) {
		t.Fatalf("completed = %v, want 3", got)
	}

	scan, err := h.scans.Get(ctx, started.ScanID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if scan.Status != domain.StatusIngesting || scan.PRCount != 3 {
		t.Fatalf("scan = %+v", scan)
	}

	pr, err := h.catalog.GetByNumber(ctx, repoID, 3)
	if err != nil {
		t.Fatalf("get pr: %v", err)
	}
	if pr.DiffHash == "" || pr.GitHubETag != `W/"e3"` || pr.Author != "octocat" {
		t.Fatalf("pr = %+v", pr)
	}

	detectID, _ := res["detectJobId"].(string)
	job, err := h.queue.Get(ctx, detectID)
	if err != nil {
		t.Fatalf("get detect job: %v", err)
	}
	var p domain.DetectJobPayload
	if err := domain.DecodePayload(job.Payload, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(p.PRNumbers, []int{3, 7, 12}) {
		t.Fatalf("scope = %v, want sorted [3 7 12]", p.PRNumbers)
	}
}

func TestIngest_SkipsUnchangedButKeepsInScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)
	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	stale := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	fresh := stale.Add(48 * time.Hour)

	// pr 1 already stored with a matching updated_at, pr 2 has moved on
	up := prUpsert(repoID, 1)
	up.UpdatedAt = stale
	if _, err := h.catalog.Upsert(ctx, up); err != nil {
		t.Fatalf("seed pr: %v", err)
	}
	up2 := prUpsert(repoID, 2)
	up2.UpdatedAt = stale
	if _, err := h.catalog.Upsert(ctx, up2); err != nil {
		t.Fatalf("seed pr: %v", err)
	}

	gh := &fakeGitHub{
		prs:   []github.PR{ghPR(1, stale), ghPR(2, fresh)},
		files: map[int][]string{2: {"mw/retry.go"}},
		diffs: map[int]string{2: "diff --git a/mw/retry.go b/mw/retry.go\n+v2"},
		etags: map[int]string{2: `W/"e2b"`},
	}
	ing := newIngester(h, gh)

	res, err := ing.Process(ctx, ingestJob(t, started.ScanID, repoID, accountID))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := res["skipped"]; got != int64(1) {
		t.Fatalf("skipped = %v, want 1", got)
	}
	if got := res["completed"]; got != int64(1) {
		t.Fatalf("completed = %v, want 1", got)
	}
	if got := res["prCount"]; got != 2 {
		t.Fatalf("prCount = %v, want 2 (skip stays in scope)", got)
	}
	if gh.fileCalls != 1 || gh.diffCalls != 1 {
		t.Fatalf("github calls = %d files / %d diffs, want 1/1", gh.fileCalls, gh.diffCalls)
	}
}

func TestIngest_ETag304KeepsStoredDiffHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)
	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	stale := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	fresh := stale.Add(time.Hour)

	// title edited (updated_at moved) but the diff itself is unchanged, so
	// GitHub answers 304 for the stored ETag
	up := prUpsert(repoID, 5)
	up.UpdatedAt = stale
	etag := `W/"e5"`
	hash := "feedface00000000"
	up.ETag = &etag
	up.DiffHash = &hash
	if _, err := h.catalog.Upsert(ctx, up); err != nil {
		t.Fatalf("seed pr: %v", err)
	}

	gh := &fakeGitHub{
		prs:   []github.PR{ghPR(5, fresh)},
		files: map[int][]string{5: {"mw/retry.go"}},
		etags: map[int]string{5: etag},
	}
	ing := newIngester(h, gh)

	res, err := ing.Process(ctx, ingestJob(t, started.ScanID, repoID, accountID))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := res["etagHits"]; got != int64(1) {
		t.Fatalf("etagHits = %v, want 1", got)
	}

	pr, err := h.catalog.GetByNumber(ctx, repoID, 5)
	if err != nil {
		t.Fatalf("get pr: %v", err)
	}
	if pr.DiffHash != hash {
		t.Fatalf("diff hash = %q, want retained %q", pr.DiffHash, hash)
	}
	if pr.GitHubETag != etag {
		t.Fatalf("etag = %q, want %q", pr.GitHubETag, etag)
	}
}

func TestIngest_DiffTooLargeStoresNullHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)
	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	gh := &fakeGitHub{
		prs:      []github.PR{ghPR(9, updated)},
		files:    map[int][]string{9: {"vendor/bundle.js"}},
		tooLarge: map[int]bool{9: true},
	}
	ing := newIngester(h, gh)

	res, err := ing.Process(ctx, ingestJob(t, started.ScanID, repoID, accountID))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := res["diffTooLarge"]; got != int64(1) {
		t.Fatalf("diffTooLarge = %v, want 1", got)
	}

	pr, err := h.catalog.GetByNumber(ctx, repoID, 9)
	if err != nil {
		t.Fatalf("get pr: %v", err)
	}
	if pr.DiffHash != "" {
		t.Fatalf("diff hash = %q, want empty for oversized diff", pr.DiffHash)
	}
	if len(pr.FilePaths) != 1 || pr.FilePaths[0] != "vendor/bundle.js" {
		t.Fatalf("file paths = %v", pr.FilePaths)
	}
}

func TestIngest_VanishedPRDroppedFromScope(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)
	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := time.Date(2025, 6, 3, 12, 0, 0, 0, time.UTC)
	gh := &fakeGitHub{
		prs:     []github.PR{ghPR(1, updated), ghPR(2, updated)},
		files:   map[int][]string{1: {"a.go"}},
		diffs:   map[int]string{1: "diff --git a/a.go b/a.go\n+x"},
		etags:   map[int]string{1: `W/"e1"`},
		missing: map[int]bool{2: true},
	}
	ing := newIngester(h, gh)

	res, err := ing.Process(ctx, ingestJob(t, started.ScanID, repoID, accountID))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := res["prCount"]; got != 1 {
		t.Fatalf("prCount = %v, want 1 (vanished PR dropped)", got)
	}

	if _, err := h.catalog.GetByNumber(ctx, repoID, 2); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("vanished pr persisted anyway: %v", err)
	}
}
