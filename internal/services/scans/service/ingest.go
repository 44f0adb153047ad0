package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"dupehound/internal/adapters/github"
	"dupehound/internal/core/diffnorm"
	"dupehound/internal/core/normalize"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	accounts "dupehound/internal/services/accounts/domain"
	catalog "dupehound/internal/services/catalog/domain"
	jobs "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/scans/domain"
)

// ingestPoolSize bounds the per-PR fan-out; the GitHub client's own
// semaphore bounds it again from below
const ingestPoolSize = 10

// Ingester handles ingest jobs: it refreshes the local PR cache from GitHub
// and hands the in-scope PR numbers to detect
type Ingester struct {
	Scans    domain.ScansPort
	Queue    jobs.QueuePort
	Resolver accounts.ResolverPort
	PRs      catalog.PRsPort
	Log      logger.Logger
	Metrics  *metrics.Metrics
}

// NewIngester constructs the ingest job processor
func NewIngester(
	scans domain.ScansPort,
	queue jobs.QueuePort,
	resolver accounts.ResolverPort,
	prs catalog.PRsPort,
	log logger.Logger,
	m *metrics.Metrics,
) *Ingester {
	return &Ingester{Scans: scans, Queue: queue, Resolver: resolver, PRs: prs, Log: log, Metrics: m}
}

// Type implements worker domain.Processor
func (i *Ingester) Type() string { return domain.JobTypeIngest }

// Process implements worker domain.Processor
func (i *Ingester) Process(ctx context.Context, job *jobs.Job) (map[string]any, error) {
	var p domain.ScanJobPayload
	if err := domain.DecodePayload(job.Payload, &p); err != nil {
		return nil, err
	}

	if err := i.Scans.Transition(ctx, p.ScanID, domain.StatusIngesting); err != nil {
		return nil, err
	}

	svcs, err := i.Resolver.Resolve(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}

	open, err := svcs.GitHub.ListOpenPRs(ctx, p.Owner, p.Repo, p.MaxPRs)
	if err != nil {
		return nil, err
	}

	stored, err := i.PRs.GetByRepo(ctx, p.RepoID)
	if err != nil {
		return nil, err
	}
	prior := make(map[int]catalog.PR, len(stored))
	for _, pr := range stored {
		prior[pr.Number] = pr
	}

	var (
		mu    sync.Mutex
		scope []int

		skipped, etagHits, diffTooLarge, completed int64
	)
	inScope := func(number int) {
		mu.Lock()
		scope = append(scope, number)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestPoolSize)
	for _, pr := range open {
		g.Go(func() error {
			prev, seen := prior[pr.Number]
			if seen && prev.UpdatedAt.Equal(pr.UpdatedAt) {
				atomic.AddInt64(&skipped, 1)
				inScope(pr.Number)
				return nil
			}

			up, outcome, err := i.refreshPR(gctx, svcs.GitHub, p, pr, prev)
			if err != nil {
				if perr.IsCode(err, perr.ErrorCodeNotFound) {
					// vanished between listing and fetching; drop from the scan
					return nil
				}
				return err
			}
			switch outcome {
			case outcomeETagHit:
				atomic.AddInt64(&etagHits, 1)
			case outcomeDiffTooLarge:
				atomic.AddInt64(&diffTooLarge, 1)
			}

			if _, err := i.PRs.Upsert(gctx, up); err != nil {
				return err
			}
			atomic.AddInt64(&completed, 1)
			inScope(pr.Number)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Ints(scope)
	if err := i.Scans.SetPRCount(ctx, p.ScanID, len(scope)); err != nil {
		return nil, err
	}

	i.Log.Info().
		Int64("scanId", p.ScanID).
		Str("repo", p.Owner+"/"+p.Repo).
		Int("prs", len(scope)).
		Int64("skipped", skipped).
		Int64("etagHits", etagHits).
		Int64("diffTooLarge", diffTooLarge).
		Int64("completed", completed).
		Msg("ingest finished")
	if i.Metrics != nil {
		i.Metrics.Provider("github", "list")
	}

	payload, err := domain.EncodePayload(domain.DetectJobPayload{
		ScanID:    p.ScanID,
		RepoID:    p.RepoID,
		AccountID: p.AccountID,
		PRNumbers: scope,
	})
	if err != nil {
		return nil, err
	}
	detectID, err := i.Queue.Enqueue(ctx, jobs.NewJob{Type: domain.JobTypeDetect, Payload: payload})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"prCount":      len(scope),
		"skipped":      skipped,
		"etagHits":     etagHits,
		"diffTooLarge": diffTooLarge,
		"completed":    completed,
		"detectJobId":  detectID,
	}, nil
}

type refreshOutcome int

const (
	outcomeFetched refreshOutcome = iota
	outcomeETagHit
	outcomeDiffTooLarge
)

// refreshPR fetches files and diff in parallel and builds the upsert. A 304
// keeps the stored diff hash and ETag; an oversized diff stores a NULL hash
// so detect falls back to metadata-only hashing for this PR
func (i *Ingester) refreshPR(
	ctx context.Context,
	gh accounts.GitHubPort,
	p domain.ScanJobPayload,
	pr github.PR,
	prev catalog.PR,
) (catalog.PRUpsert, refreshOutcome, error) {
	var (
		files       []string
		diff        string
		newETag     string
		notModified bool
		tooLarge    bool
	)

	inner, ictx := errgroup.WithContext(ctx)
	inner.Go(func() error {
		fs, err := gh.GetPRFiles(ictx, p.Owner, p.Repo, pr.Number)
		if err != nil {
			return err
		}
		files = fs
		return nil
	})
	inner.Go(func() error {
		d, et, nm, err := gh.GetPRDiff(ictx, p.Owner, p.Repo, pr.Number, prev.GitHubETag)
		if errors.Is(err, github.ErrDiffTooLarge) {
			tooLarge = true
			return nil
		}
		if err != nil {
			return err
		}
		diff, newETag, notModified = d, et, nm
		return nil
	})
	if err := inner.Wait(); err != nil {
		return catalog.PRUpsert{}, outcomeFetched, err
	}

	var (
		diffHash *string
		etag     *string
		outcome  = outcomeFetched
	)
	switch {
	case tooLarge:
		outcome = outcomeDiffTooLarge
		if prev.GitHubETag != "" {
			etag = &prev.GitHubETag
		}
	case notModified:
		outcome = outcomeETagHit
		if prev.DiffHash != "" {
			diffHash = &prev.DiffHash
		}
		if newETag == "" {
			newETag = prev.GitHubETag
		}
		if newETag != "" {
			etag = &newETag
		}
	default:
		h := diffnorm.Hash(diff)
		diffHash = &h
		if newETag != "" {
			etag = &newETag
		}
	}

	return catalog.PRUpsert{
		RepoID: p.RepoID,
		Number: pr.Number,
		// control chars and invalid UTF-8 never reach the db or prompts
		Title:     normalize.Sanitize(pr.Title),
		Body:      normalize.Sanitize(pr.Body),
		Author:    pr.User.Login,
		DiffHash:  diffHash,
		FilePaths: files,
		State:     pr.State,
		ETag:      etag,
		CreatedAt: pr.CreatedAt,
		UpdatedAt: pr.UpdatedAt,
	}, outcome, nil
}
