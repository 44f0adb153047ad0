package service

import (
	"context"
	"errors"
	"sort"

	"dupehound/internal/adapters/github"
	"dupehound/internal/adapters/vector"
	"dupehound/internal/core/diffnorm"
	"dupehound/internal/core/normalize"
	perr "dupehound/internal/platform/errors"
	accounts "dupehound/internal/services/accounts/domain"
	catalog "dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/detect/domain"
)

// Finder answers ad hoc single-PR duplicate queries against the stored
// vectors, without starting a scan or calling the verifier
type Finder struct {
	Repos    catalog.ReposPort
	PRs      catalog.PRsPort
	Resolver accounts.ResolverPort
}

// NewFinder constructs the finder
func NewFinder(repos catalog.ReposPort, prs catalog.PRsPort, resolver accounts.ResolverPort) *Finder {
	return &Finder{Repos: repos, PRs: prs, Resolver: resolver}
}

// FindDuplicates looks the PR up locally, fetching and embedding it on the
// fly when it was never scanned, then returns the nearest verified-quality
// candidates across both spaces, best first. A PR unknown to GitHub
// surfaces as not found
func (f *Finder) FindDuplicates(ctx context.Context, in domain.FindInput) ([]domain.Match, error) {
	rp, err := f.Repos.Get(ctx, in.RepoID)
	if err != nil {
		return nil, err
	}
	svcs, err := f.Resolver.Resolve(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	pr, err := f.PRs.GetByNumber(ctx, in.RepoID, in.Number)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		pr, err = f.fetchPR(ctx, svcs, rp, in.Number)
	}
	if err != nil {
		return nil, err
	}

	vectors, err := f.vectorsFor(ctx, svcs, pr)
	if err != nil {
		return nil, err
	}

	limit := 2 * svcs.Tuning.MaxCandidatesPerPR
	thresholds := map[string]float64{
		domain.SpaceCode:   svcs.Tuning.CodeThreshold,
		domain.SpaceIntent: svcs.Tuning.IntentThreshold,
	}

	best := make(map[int]domain.Match)
	for _, space := range []string{domain.SpaceCode, domain.SpaceIntent} {
		vec, ok := vectors[space]
		if !ok {
			continue
		}
		hits, err := svcs.Vector.Search(ctx, space, vec, vector.SearchQuery{
			Limit:  limit,
			Filter: vector.Filter{RepoID: in.RepoID},
		})
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if h.Payload.PRNumber == pr.Number || h.Score < thresholds[space] {
				continue
			}
			if cur, seen := best[h.Payload.PRNumber]; !seen || h.Score > cur.Score {
				best[h.Payload.PRNumber] = domain.Match{
					Number: h.Payload.PRNumber,
					Score:  h.Score,
					Space:  space,
				}
			}
		}
	}
	if len(best) == 0 {
		return nil, nil
	}

	nums := make([]int, 0, len(best))
	for n := range best {
		nums = append(nums, n)
	}
	known, err := f.PRs.GetByNumbers(ctx, in.RepoID, nums)
	if err != nil {
		return nil, err
	}

	// stale points for PRs no longer cached locally are dropped
	out := make([]domain.Match, 0, len(known))
	for i := range known {
		m := best[known[i].Number]
		m.Title = known[i].Title
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Number < out[j].Number
	})
	if len(out) > svcs.Tuning.MaxCandidatesPerPR {
		out = out[:svcs.Tuning.MaxCandidatesPerPR]
	}
	return out, nil
}

// fetchPR pulls one PR from GitHub into the local catalog
func (f *Finder) fetchPR(ctx context.Context, svcs *accounts.Services, rp catalog.Repo, number int) (catalog.PR, error) {
	ghpr, err := svcs.GitHub.FetchPR(ctx, rp.Owner, rp.Name, number)
	if err != nil {
		return catalog.PR{}, err
	}
	files, err := svcs.GitHub.GetPRFiles(ctx, rp.Owner, rp.Name, number)
	if err != nil {
		return catalog.PR{}, err
	}

	var diffHash, etag *string
	diff, newETag, _, err := svcs.GitHub.GetPRDiff(ctx, rp.Owner, rp.Name, number, "")
	switch {
	case errors.Is(err, github.ErrDiffTooLarge):
		// file paths still describe the change well enough to embed
	case err != nil:
		return catalog.PR{}, err
	default:
		h := diffnorm.Hash(diff)
		diffHash = &h
		if newETag != "" {
			etag = &newETag
		}
	}

	if _, err := f.PRs.Upsert(ctx, catalog.PRUpsert{
		RepoID:    rp.ID,
		Number:    ghpr.Number,
		Title:     normalize.Sanitize(ghpr.Title),
		Body:      normalize.Sanitize(ghpr.Body),
		Author:    ghpr.User.Login,
		DiffHash:  diffHash,
		FilePaths: files,
		State:     ghpr.State,
		ETag:      etag,
		CreatedAt: ghpr.CreatedAt,
		UpdatedAt: ghpr.UpdatedAt,
	}); err != nil {
		return catalog.PR{}, err
	}
	return f.PRs.GetByNumber(ctx, rp.ID, number)
}

// vectorsFor returns the query vectors for both spaces, reusing stored ones
// when the embed hash is current and embedding synchronously otherwise.
// Intent is never extracted here, so an unscanned PR queries code space only
func (f *Finder) vectorsFor(ctx context.Context, svcs *accounts.Services, pr catalog.PR) (map[string][]float32, error) {
	hash := contentHash(pr)
	out := make(map[string][]float32, 2)

	if pr.EmbedHash == hash {
		vec, ok, err := svcs.Vector.GetVector(ctx, domain.SpaceCode, vector.PointID(pr.RepoID, pr.Number, domain.SpaceCode))
		if err != nil {
			return nil, err
		}
		if ok {
			out[domain.SpaceCode] = vec
		}
		if pr.IntentSummary != "" {
			vec, ok, err = svcs.Vector.GetVector(ctx, domain.SpaceIntent, vector.PointID(pr.RepoID, pr.Number, domain.SpaceIntent))
			if err != nil {
				return nil, err
			}
			if ok {
				out[domain.SpaceIntent] = vec
			}
		}
		if len(out) > 0 {
			return out, nil
		}
		// store lost the points; re-embed below
	}

	dim := svcs.Embed.Dimensions()
	inputs := []string{codeText(pr)}
	spaces := []string{domain.SpaceCode}
	if pr.IntentSummary != "" {
		inputs = append(inputs, pr.IntentSummary)
		spaces = append(spaces, domain.SpaceIntent)
	}
	for _, space := range spaces {
		if err := svcs.Vector.EnsureCollection(ctx, space, dim); err != nil {
			return nil, err
		}
	}

	vecs, _, err := svcs.Embed.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(inputs) {
		return nil, perr.Newf(perr.ErrorCodeUnknown, "embedding count mismatch: %d inputs, %d vectors", len(inputs), len(vecs))
	}

	for i, space := range spaces {
		out[space] = vecs[i]
		if err := svcs.Vector.Upsert(ctx, space, []vector.Point{{
			ID:     vector.PointID(pr.RepoID, pr.Number, space),
			Vector: vecs[i],
			Payload: vector.Payload{
				RepoID:   pr.RepoID,
				PRNumber: pr.Number,
				PRID:     pr.ID,
			},
		}}); err != nil {
			return nil, err
		}
	}
	if err := f.PRs.SetEmbedHash(ctx, pr.ID, hash); err != nil {
		return nil, err
	}
	return out, nil
}
