package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	ptime "dupehound/internal/platform/time"
	catalog "dupehound/internal/services/catalog/domain"
	catalogrepo "dupehound/internal/services/catalog/repo"
	catalogsvc "dupehound/internal/services/catalog/service"
	jobsdom "dupehound/internal/services/jobs/domain"
	jobsrepo "dupehound/internal/services/jobs/repo"
	jobssvc "dupehound/internal/services/jobs/service"
	"dupehound/internal/services/scans/domain"
	"dupehound/internal/services/scans/repo"
)

type harness struct {
	scans   *Service
	queue   jobsdom.QueuePort
	catalog *catalogsvc.Service
	store   *store.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{
		DB: store.DBConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "scans.sqlite")},
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	queue := jobssvc.New(s.DB, jobsrepo.NewStore(), jobssvc.Config{})
	cat := catalogsvc.New(s.DB, catalogrepo.NewStore())
	return &harness{
		scans:   New(s.DB, repo.NewStore(), queue, cat),
		queue:   queue,
		catalog: cat,
		store:   s,
	}
}

// seedAccount inserts a bare account row so scan foreign keys hold
func seedAccount(t *testing.T, s *store.Store) int64 {
	t.Helper()

	now := ptime.Format(time.Now())
	var id int64
	err := s.DB.QueryRow(context.Background(),
		`INSERT INTO accounts (api_key, config, created_at, updated_at) VALUES (?, '{}', ?, ?) RETURNING id`,
		"dh_test_"+t.Name(), now, now,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return id
}

func (h *harness) seedRepo(t *testing.T) int64 {
	t.Helper()

	rp, err := h.catalog.Track(context.Background(), "acme", "widget")
	if err != nil {
		t.Fatalf("track repo: %v", err)
	}
	return rp.ID
}

func prUpsert(repoID int64, number int) catalog.PRUpsert {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	hash := "hash-of-pr"
	return catalog.PRUpsert{
		RepoID:    repoID,
		Number:    number,
		Title:     "add retry middleware",
		Body:      "wraps outbound calls",
		Author:    "octocat",
		DiffHash:  &hash,
		FilePaths: []string{"mw/retry.go"},
		State:     "open",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStart_CreatesScanAndEnqueuesOrchestratorJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID, MaxPRs: 25})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.ScanID == 0 || started.JobID == "" {
		t.Fatalf("start returned zero ids: %+v", started)
	}

	scan, err := h.scans.Get(ctx, started.ScanID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if scan.Status != domain.StatusQueued {
		t.Fatalf("new scan status = %q, want queued", scan.Status)
	}
	if scan.RepoID != repoID || scan.AccountID != accountID {
		t.Fatalf("scan row = %+v", scan)
	}

	job, err := h.queue.Get(ctx, started.JobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Type != domain.JobTypeScan {
		t.Fatalf("job type = %q, want scan", job.Type)
	}
	var p domain.ScanJobPayload
	if err := domain.DecodePayload(job.Payload, &p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.ScanID != started.ScanID || p.Owner != "acme" || p.Repo != "widget" || p.MaxPRs != 25 {
		t.Fatalf("payload = %+v", p)
	}
}

func TestStart_UnknownRepo(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	accountID := seedAccount(t, h.store)

	_, err := h.scans.Start(context.Background(), domain.StartInput{RepoID: 404, AccountID: accountID})
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestTransition_WalksPipelineAndRejectsSkips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := started.ScanID

	// skipping ingesting is illegal from queued
	if err := h.scans.Transition(ctx, id, domain.StatusEmbedding); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("queued->embedding err = %v, want Conflict", err)
	}

	for _, next := range []string{
		domain.StatusIngesting,
		domain.StatusEmbedding,
		domain.StatusVerifying,
		domain.StatusRanking,
	} {
		if err := h.scans.Transition(ctx, id, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		// a retried processor rewrites the status it already holds
		if err := h.scans.Transition(ctx, id, next); err != nil {
			t.Fatalf("re-transition to %s: %v", next, err)
		}
	}

	// failure is reachable from anywhere
	if err := h.scans.Transition(ctx, id, domain.StatusFailed); err != nil {
		t.Fatalf("transition to failed: %v", err)
	}
}

func TestPhaseCursorAndPRCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := started.ScanID

	cursor := "batch_abc123"
	if err := h.scans.SetPhaseCursor(ctx, id, &cursor); err != nil {
		t.Fatalf("set cursor: %v", err)
	}
	if err := h.scans.SetPRCount(ctx, id, 42); err != nil {
		t.Fatalf("set pr count: %v", err)
	}

	scan, err := h.scans.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if scan.PhaseCursor == nil || *scan.PhaseCursor != cursor {
		t.Fatalf("cursor = %v, want %q", scan.PhaseCursor, cursor)
	}
	if scan.PRCount != 42 {
		t.Fatalf("pr count = %d, want 42", scan.PRCount)
	}

	if err := h.scans.SetPhaseCursor(ctx, id, nil); err != nil {
		t.Fatalf("clear cursor: %v", err)
	}
	scan, err = h.scans.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if scan.PhaseCursor != nil {
		t.Fatalf("cursor not cleared: %v", *scan.PhaseCursor)
	}
}

func TestAddTokenUsage_AccumulatesPerPhase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := started.ScanID

	if err := h.scans.AddTokenUsage(ctx, id, "intent", 100, 40); err != nil {
		t.Fatalf("add usage: %v", err)
	}
	if err := h.scans.AddTokenUsage(ctx, id, "intent", 50, 10); err != nil {
		t.Fatalf("add usage: %v", err)
	}
	if err := h.scans.AddTokenUsage(ctx, id, "verify", 200, 80); err != nil {
		t.Fatalf("add usage: %v", err)
	}

	scan, err := h.scans.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if scan.InputTokens != 350 || scan.OutputTokens != 130 {
		t.Fatalf("totals = %d/%d, want 350/130", scan.InputTokens, scan.OutputTokens)
	}
	if got := scan.TokenUsage["intent"]; got.InputTokens != 150 || got.OutputTokens != 50 {
		t.Fatalf("intent usage = %+v", got)
	}
	if got := scan.TokenUsage["verify"]; got.InputTokens != 200 || got.OutputTokens != 80 {
		t.Fatalf("verify usage = %+v", got)
	}
}

func TestMarkDoneAndMarkFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	a, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.scans.MarkDone(ctx, a.ScanID, 3); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	scan, err := h.scans.Get(ctx, a.ScanID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if scan.Status != domain.StatusDone || scan.DupeGroupCount != 3 || scan.CompletedAt == nil {
		t.Fatalf("done scan = %+v", scan)
	}

	b, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.scans.MarkFailed(ctx, b.ScanID, "provider unreachable"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	scan, err = h.scans.Get(ctx, b.ScanID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if scan.Status != domain.StatusFailed || scan.Error != "provider unreachable" || scan.CompletedAt == nil {
		t.Fatalf("failed scan = %+v", scan)
	}
}

func TestGroups_ReplaceAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	accountID := seedAccount(t, h.store)
	repoID := h.seedRepo(t)

	prIDs := make(map[int]int64)
	for _, n := range []int{101, 102, 103, 104} {
		id, err := h.catalog.Upsert(ctx, prUpsert(repoID, n))
		if err != nil {
			t.Fatalf("upsert pr %d: %v", n, err)
		}
		prIDs[n] = id
	}

	started, err := h.scans.Start(ctx, domain.StartInput{RepoID: repoID, AccountID: accountID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	scanID := started.ScanID

	first := []domain.GroupWrite{
		{
			Label: "retry middleware", Confidence: 0.8, Relationship: "exact_duplicate",
			Members: []domain.MemberWrite{
				{PRID: prIDs[101], Rank: 1, Score: 88, Rationale: "tests included"},
				{PRID: prIDs[102], Rank: 2, Score: 61, Rationale: "partial"},
			},
		},
	}
	if err := h.scans.Replace(ctx, scanID, repoID, first); err != nil {
		t.Fatalf("replace: %v", err)
	}

	// a rerun rewrites the result set wholesale
	second := []domain.GroupWrite{
		{
			Label: "rate limiter", Confidence: 0.72, Relationship: "near_duplicate",
			Members: []domain.MemberWrite{
				{PRID: prIDs[103], Rank: 1, Score: 90, Rationale: "complete"},
				{PRID: prIDs[104], Rank: 2, Score: 45, Rationale: "draft"},
			},
		},
		{
			Label: "retry middleware", Confidence: 0.93, Relationship: "exact_duplicate",
			Members: []domain.MemberWrite{
				{PRID: prIDs[101], Rank: 1, Score: 88, Rationale: "tests included"},
				{PRID: prIDs[102], Rank: 2, Score: 61, Rationale: "partial"},
			},
		},
	}
	if err := h.scans.Replace(ctx, scanID, repoID, second); err != nil {
		t.Fatalf("replace again: %v", err)
	}

	groups, err := h.scans.ListByScan(ctx, scanID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Label != "retry middleware" || groups[1].Label != "rate limiter" {
		t.Fatalf("order = %q, %q; want confidence desc", groups[0].Label, groups[1].Label)
	}
	g := groups[0]
	if g.Confidence != 0.93 || g.Relationship != "exact_duplicate" || len(g.Members) != 2 {
		t.Fatalf("group = %+v", g)
	}
	if g.Members[0].Rank != 1 || g.Members[0].Number != 101 || g.Members[0].Score != 88 {
		t.Fatalf("top member = %+v", g.Members[0])
	}
	if g.Members[1].Number != 102 || g.Members[1].Rationale != "partial" {
		t.Fatalf("second member = %+v", g.Members[1])
	}
}
