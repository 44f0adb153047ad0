// Package service implements the detect pipeline: change partitioning,
// intent extraction, embedding, candidate retrieval, pairwise verification
// and clique ranking, all running inside a single detect job
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"dupehound/internal/core/clique"
	"dupehound/internal/core/prompt"
	"dupehound/internal/modkit/repokit"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	accounts "dupehound/internal/services/accounts/domain"
	catalog "dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/detect/domain"
	"dupehound/internal/services/detect/repo"
	jobs "dupehound/internal/services/jobs/domain"
	scans "dupehound/internal/services/scans/domain"
)

// phase names double as token ledger keys and cursor prefixes
const (
	phaseIntent = "intent"
	phaseEmbed  = "embed"
	phaseVerify = "verify"
	phaseRank   = "rank"
)

// Config for the detect strategy
type Config struct {
	OutputReserve int // tokens held back from the prompt budget for the reply
}

// Strategy processes detect jobs. Every expensive step checkpoints into the
// scan or PR rows, so a retried job resumes instead of paying twice
type Strategy struct {
	DB       repokit.TxRunner
	Binder   repokit.Binder[repo.Storage]
	Scans    scans.ScansPort
	Groups   scans.GroupsPort
	Repos    catalog.ReposPort
	PRs      catalog.PRsPort
	Resolver accounts.ResolverPort
	Cfg      Config
	Log      logger.Logger
	Metrics  *metrics.Metrics

	now func() time.Time
}

// NewStrategy constructs the detect processor
func NewStrategy(
	db repokit.TxRunner,
	scansPort scans.ScansPort,
	groups scans.GroupsPort,
	repos catalog.ReposPort,
	prs catalog.PRsPort,
	resolver accounts.ResolverPort,
	cfg Config,
	log logger.Logger,
	m *metrics.Metrics,
) *Strategy {
	if cfg.OutputReserve <= 0 {
		cfg.OutputReserve = 1024
	}
	return &Strategy{
		DB:       db,
		Binder:   repo.NewStore(),
		Scans:    scansPort,
		Groups:   groups,
		Repos:    repos,
		PRs:      prs,
		Resolver: resolver,
		Cfg:      cfg,
		Log:      log,
		Metrics:  m,
		now:      time.Now,
	}
}

// Type satisfies worker.Processor
func (s *Strategy) Type() string { return scans.JobTypeDetect }

// Process runs the full detection pass for one scan
func (s *Strategy) Process(ctx context.Context, job *jobs.Job) (map[string]any, error) {
	var p scans.DetectJobPayload
	if err := scans.DecodePayload(job.Payload, &p); err != nil {
		return nil, err
	}

	scan, err := s.Scans.Get(ctx, p.ScanID)
	if err != nil {
		return nil, err
	}
	svcs, err := s.Resolver.Resolve(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	prs, err := s.PRs.GetByNumbers(ctx, p.RepoID, p.PRNumbers)
	if err != nil {
		return nil, err
	}

	st := newScanState(p, scan, svcs, prs, s.Cfg.OutputReserve)

	// step only moves the scan forward; a retry that already reached a
	// later status must not walk the machine backwards
	cur := scan.Status
	step := func(target string) error {
		if scans.AtOrPast(cur, target) {
			return nil
		}
		if err := s.Scans.Transition(ctx, p.ScanID, target); err != nil {
			return err
		}
		cur = target
		return nil
	}

	if err := step(scans.StatusEmbedding); err != nil {
		return nil, err
	}
	if err := s.extractIntents(ctx, st); err != nil {
		return nil, err
	}
	if err := s.embed(ctx, st); err != nil {
		return nil, err
	}

	if err := step(scans.StatusVerifying); err != nil {
		return nil, err
	}
	pairs, err := s.candidates(ctx, st)
	if err != nil {
		return nil, err
	}
	edges, stats, err := s.verify(ctx, st, pairs)
	if err != nil {
		return nil, err
	}

	if err := step(scans.StatusRanking); err != nil {
		return nil, err
	}
	groups := clique.Build(edges)
	writes, err := s.rank(ctx, st, groups)
	if err != nil {
		return nil, err
	}

	if err := s.Groups.Replace(ctx, p.ScanID, p.RepoID, writes); err != nil {
		return nil, err
	}
	if err := s.Scans.MarkDone(ctx, p.ScanID, len(writes)); err != nil {
		return nil, err
	}
	if err := s.Repos.SetLastScanAt(ctx, p.RepoID, s.now().UTC()); err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.Scan("done")
	}

	s.Log.Info().
		Int64("scanId", p.ScanID).
		Int64("repoId", p.RepoID).
		Int("prs", len(st.prs)).
		Int("changed", len(st.changed)).
		Int("pairs", len(pairs)).
		Int("cacheHits", stats.hits).
		Int("groups", len(writes)).
		Msg("detect finished")

	return map[string]any{
		"prCount":     len(st.prs),
		"changed":     len(st.changed),
		"pairs":       len(pairs),
		"cacheHits":   stats.hits,
		"cacheMisses": stats.misses,
		"dropped":     stats.dropped,
		"groups":      len(writes),
	}, nil
}

// scanState carries one scan's working set across phases
type scanState struct {
	scanID    int64
	repoID    int64
	accountID int64
	svcs      *accounts.Services
	tuning    accounts.Tuning
	reserve   int
	cursor    *string

	prs   []catalog.PR
	byNum map[int]*catalog.PR
	hash  map[int]string

	// changed lists PR numbers whose stored checkpoints are stale; only
	// these cost provider calls this pass
	changed     []int
	freshIntent map[int]bool

	vectors map[string]map[int][]float32
}

func newScanState(p scans.DetectJobPayload, scan scans.Scan, svcs *accounts.Services, prs []catalog.PR, reserve int) *scanState {
	st := &scanState{
		scanID:      p.ScanID,
		repoID:      p.RepoID,
		accountID:   p.AccountID,
		svcs:        svcs,
		tuning:      svcs.Tuning,
		reserve:     reserve,
		cursor:      scan.PhaseCursor,
		prs:         prs,
		byNum:       make(map[int]*catalog.PR, len(prs)),
		hash:        make(map[int]string, len(prs)),
		freshIntent: make(map[int]bool),
		vectors: map[string]map[int][]float32{
			domain.SpaceCode:   make(map[int][]float32, len(prs)),
			domain.SpaceIntent: make(map[int][]float32, len(prs)),
		},
	}
	sort.Slice(st.prs, func(i, j int) bool { return st.prs[i].Number < st.prs[j].Number })
	for i := range st.prs {
		pr := &st.prs[i]
		st.byNum[pr.Number] = pr
		h := contentHash(*pr)
		st.hash[pr.Number] = h
		if h != pr.EmbedHash || pr.IntentSummary == "" {
			st.changed = append(st.changed, pr.Number)
		}
	}
	return st
}

// resume returns the provider batch id checkpointed for phase, if any
func (st *scanState) resume(phase string) string {
	if st.cursor == nil {
		return ""
	}
	if rest, ok := strings.CutPrefix(*st.cursor, phase+":"); ok {
		return rest
	}
	return ""
}

func (st *scanState) chatBudget() prompt.Budget {
	return prompt.Budget{
		MaxTokens:     st.svcs.Chat.MaxContextTokens(),
		OutputReserve: st.reserve,
		Count:         st.svcs.Chat.CountTokens,
	}
}

// cursorSetter checkpoints a freshly created provider batch id before the
// poll loop starts, so a crash while waiting resumes the same batch
func (s *Strategy) cursorSetter(ctx context.Context, st *scanState, phase string) func(string) error {
	return func(id string) error {
		c := phase + ":" + id
		if err := s.Scans.SetPhaseCursor(ctx, st.scanID, &c); err != nil {
			return err
		}
		st.cursor = &c
		return nil
	}
}

func (s *Strategy) clearCursor(ctx context.Context, st *scanState) error {
	if st.cursor == nil {
		return nil
	}
	if err := s.Scans.SetPhaseCursor(ctx, st.scanID, nil); err != nil {
		return err
	}
	st.cursor = nil
	return nil
}

func (s *Strategy) cacheEvent(cache, event string) {
	if s.Metrics != nil {
		s.Metrics.Cache(cache, event)
	}
}

// contentHash fingerprints the fields detection depends on. Sixteen hex
// chars keeps the column short; collisions within one repo are not a concern
// at this scale
func contentHash(pr catalog.PR) string {
	h := sha256.New()
	h.Write([]byte(pr.DiffHash))
	h.Write([]byte{'|'})
	h.Write([]byte(pr.Title))
	h.Write([]byte{'|'})
	h.Write([]byte(pr.Body))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.Join(pr.FilePaths, ",")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// codeText is the code-space embedding input: title plus touched paths
func codeText(pr catalog.PR) string {
	if len(pr.FilePaths) == 0 {
		return pr.Title
	}
	return pr.Title + "\n" + strings.Join(pr.FilePaths, "\n")
}

func promptPR(pr catalog.PR) prompt.PR {
	return prompt.PR{
		Number:        pr.Number,
		Title:         pr.Title,
		Body:          pr.Body,
		Author:        pr.Author,
		FilePaths:     pr.FilePaths,
		IntentSummary: pr.IntentSummary,
	}
}
