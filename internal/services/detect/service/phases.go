package service

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"dupehound/internal/adapters/llm"
	"dupehound/internal/adapters/vector"
	"dupehound/internal/core/prompt"
	"dupehound/internal/core/unionfind"
	perr "dupehound/internal/platform/errors"
	catalog "dupehound/internal/services/catalog/domain"
	"dupehound/internal/services/detect/domain"
)

// extractIntents fills in missing intent summaries. A PR that still carries
// a summary keeps it even when its content hash moved; refreshed content
// reaches the vectors through re-embedding instead. Each summary is
// checkpointed onto its PR row immediately, so a retry never re-asks
func (s *Strategy) extractIntents(ctx context.Context, st *scanState) error {
	var need []*catalog.PR
	for _, n := range st.changed {
		if pr := st.byNum[n]; pr.IntentSummary == "" {
			need = append(need, pr)
		}
	}
	if len(need) == 0 {
		return nil
	}

	var usage llm.Usage

	if st.svcs.BatchChat && len(need) > 1 {
		reqs := make([]llm.ChatRequest, 0, len(need))
		for _, pr := range need {
			built := prompt.Intent(promptPR(*pr))
			reqs = append(reqs, llm.ChatRequest{
				ID:       strconv.Itoa(pr.Number),
				Messages: llm.Messages(built.System, built.User),
			})
		}
		outcomes, err := st.svcs.Chat.ChatBatch(ctx, reqs, llm.BatchOpts{
			ExistingBatchID: st.resume(phaseIntent),
			OnBatchCreated:  s.cursorSetter(ctx, st, phaseIntent),
		})
		if err != nil {
			return err
		}
		for _, o := range outcomes {
			if o.Err != nil {
				// one bad item does not sink the batch; the PR simply
				// stays without an intent this pass
				s.Log.Warn().Str("id", o.ID).Err(o.Err).Msg("intent item failed")
				continue
			}
			usage.Add(o.Usage)
			n, convErr := strconv.Atoi(o.ID)
			if convErr != nil {
				continue
			}
			if err := s.persistIntent(ctx, st, n, o.Response); err != nil {
				return err
			}
		}
		if err := s.clearCursor(ctx, st); err != nil {
			return err
		}
	} else {
		for _, pr := range need {
			built := prompt.Intent(promptPR(*pr))
			out, err := st.svcs.Chat.Chat(ctx, llm.Messages(built.System, built.User))
			if err != nil {
				return err
			}
			usage.Add(out.Usage)
			if err := s.persistIntent(ctx, st, pr.Number, out.Response); err != nil {
				return err
			}
		}
	}

	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return nil
	}
	return s.Scans.AddTokenUsage(ctx, st.scanID, phaseIntent, int64(usage.InputTokens), int64(usage.OutputTokens))
}

func (s *Strategy) persistIntent(ctx context.Context, st *scanState, number int, raw string) error {
	pr, ok := st.byNum[number]
	if !ok {
		return nil
	}
	summary := strings.TrimSpace(raw)
	if summary == "" {
		return nil
	}
	if err := s.PRs.SetIntentSummary(ctx, pr.ID, summary); err != nil {
		return err
	}
	pr.IntentSummary = summary
	st.freshIntent[number] = true
	return nil
}

// embedItem is one pending embedding input
type embedItem struct {
	number int
	space  string
	text   string
}

// embed brings both vector spaces up to date for the scan scope. Changed
// PRs are re-embedded; unchanged PRs reuse their stored vectors, falling
// back to re-embedding when the store lost them. Embed hashes are advanced
// only after every vector is durably upserted
func (s *Strategy) embed(ctx context.Context, st *scanState) error {
	if len(st.prs) == 0 {
		return nil
	}

	dim := st.svcs.Embed.Dimensions()
	for _, space := range []string{domain.SpaceCode, domain.SpaceIntent} {
		if err := st.svcs.Vector.EnsureCollection(ctx, space, dim); err != nil {
			return err
		}
	}

	var items []embedItem
	for i := range st.prs {
		pr := &st.prs[i]
		n := pr.Number
		staleCode := st.hash[n] != pr.EmbedHash
		staleIntent := staleCode || st.freshIntent[n]

		if staleCode {
			s.cacheEvent("embed", "miss")
			items = append(items, embedItem{number: n, space: domain.SpaceCode, text: codeText(*pr)})
		} else {
			it, err := s.reuseOrQueue(ctx, st, n, domain.SpaceCode, codeText(*pr))
			if err != nil {
				return err
			}
			if it != nil {
				items = append(items, *it)
			}
		}

		if pr.IntentSummary == "" {
			continue
		}
		if staleIntent {
			s.cacheEvent("embed", "miss")
			items = append(items, embedItem{number: n, space: domain.SpaceIntent, text: pr.IntentSummary})
		} else {
			it, err := s.reuseOrQueue(ctx, st, n, domain.SpaceIntent, pr.IntentSummary)
			if err != nil {
				return err
			}
			if it != nil {
				items = append(items, *it)
			}
		}
	}

	if len(items) > 0 {
		inputs := make([]string, len(items))
		for i := range items {
			inputs[i] = items[i].text
		}

		var (
			vecs  [][]float32
			usage llm.Usage
			err   error
		)
		if st.svcs.BatchEmbed && len(inputs) > 1 {
			vecs, usage, err = st.svcs.Embed.EmbedBatch(ctx, inputs, llm.BatchOpts{
				ExistingBatchID: st.resume(phaseEmbed),
				OnBatchCreated:  s.cursorSetter(ctx, st, phaseEmbed),
			})
		} else {
			vecs, usage, err = st.svcs.Embed.Embed(ctx, inputs)
		}
		if err != nil {
			return err
		}
		if len(vecs) != len(items) {
			return perr.Newf(perr.ErrorCodeUnknown, "embedding count mismatch: %d inputs, %d vectors", len(items), len(vecs))
		}

		points := map[string][]vector.Point{}
		for i, it := range items {
			st.vectors[it.space][it.number] = vecs[i]
			points[it.space] = append(points[it.space], vector.Point{
				ID:     vector.PointID(st.repoID, it.number, it.space),
				Vector: vecs[i],
				Payload: vector.Payload{
					RepoID:   st.repoID,
					PRNumber: it.number,
					PRID:     st.byNum[it.number].ID,
				},
			})
		}
		for _, space := range []string{domain.SpaceCode, domain.SpaceIntent} {
			if len(points[space]) == 0 {
				continue
			}
			if err := st.svcs.Vector.Upsert(ctx, space, points[space]); err != nil {
				return err
			}
		}

		if usage.InputTokens > 0 || usage.OutputTokens > 0 {
			if err := s.Scans.AddTokenUsage(ctx, st.scanID, phaseEmbed, int64(usage.InputTokens), int64(usage.OutputTokens)); err != nil {
				return err
			}
		}
		if err := s.clearCursor(ctx, st); err != nil {
			return err
		}
	}

	for _, n := range st.changed {
		pr := st.byNum[n]
		if pr.EmbedHash == st.hash[n] {
			continue
		}
		if err := s.PRs.SetEmbedHash(ctx, pr.ID, st.hash[n]); err != nil {
			return err
		}
		pr.EmbedHash = st.hash[n]
	}
	return nil
}

// reuseOrQueue fetches an unchanged PR's stored vector, or queues a
// re-embed when the collection no longer holds it
func (s *Strategy) reuseOrQueue(ctx context.Context, st *scanState, n int, space, text string) (*embedItem, error) {
	vec, ok, err := st.svcs.Vector.GetVector(ctx, space, vector.PointID(st.repoID, n, space))
	if err != nil {
		return nil, err
	}
	if ok {
		s.cacheEvent("embed", "hit")
		st.vectors[space][n] = vec
		return nil, nil
	}
	s.cacheEvent("embed", "miss")
	return &embedItem{number: n, space: space, text: text}, nil
}

// candidates runs k-NN over both spaces and adds same-diff pairs, returning
// the ordered unique pair list to verify
func (s *Strategy) candidates(ctx context.Context, st *scanState) ([]pairKey, error) {
	scope := unionfind.New[int]()
	for i := range st.prs {
		scope.Add(st.prs[i].Number)
	}

	limit := 2 * st.tuning.MaxCandidatesPerPR
	thresholds := map[string]float64{
		domain.SpaceCode:   st.tuning.CodeThreshold,
		domain.SpaceIntent: st.tuning.IntentThreshold,
	}

	pairs := make(map[pairKey]bool)
	var stale int
	for i := range st.prs {
		pr := &st.prs[i]
		for _, space := range []string{domain.SpaceCode, domain.SpaceIntent} {
			vec := st.vectors[space][pr.Number]
			if vec == nil {
				continue
			}
			hits, err := st.svcs.Vector.Search(ctx, space, vec, vector.SearchQuery{
				Limit:  limit,
				Filter: vector.Filter{RepoID: st.repoID},
			})
			if err != nil {
				return nil, err
			}
			for _, h := range hits {
				if h.Payload.PRNumber == pr.Number || h.Score < thresholds[space] {
					continue
				}
				// points for PRs outside this scan are stale leftovers
				if _, err := scope.Find(h.Payload.PRNumber); err != nil {
					stale++
					continue
				}
				scope.Union(pr.Number, h.Payload.PRNumber)
				pairs[orderPair(pr.Number, h.Payload.PRNumber)] = true
			}
		}
	}

	// identical normalized diffs are candidates regardless of vector
	// similarity; oversized classes are split so no verification cluster
	// exceeds the cap
	byHash := make(map[string][]int)
	for i := range st.prs {
		if st.prs[i].DiffHash == "" {
			continue
		}
		byHash[st.prs[i].DiffHash] = append(byHash[st.prs[i].DiffHash], st.prs[i].Number)
	}
	for _, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Ints(members)
		for start := 0; start < len(members); start += domain.MaxVerifyCluster {
			chunk := members[start:min(start+domain.MaxVerifyCluster, len(members))]
			for i := 0; i < len(chunk); i++ {
				for j := i + 1; j < len(chunk); j++ {
					scope.Union(chunk[i], chunk[j])
					pairs[orderPair(chunk[i], chunk[j])] = true
				}
			}
		}
	}

	if stale > 0 {
		s.Log.Debug().Int64("scanId", st.scanID).Int("stale", stale).Msg("ignored stale vector points")
	}

	out := make([]pairKey, 0, len(pairs))
	for pk := range pairs {
		out = append(out, pk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].a != out[j].a {
			return out[i].a < out[j].a
		}
		return out[i].b < out[j].b
	})
	return out, nil
}

// pairKey is an ordered candidate pair; a is always the lower number
type pairKey struct{ a, b int }

func orderPair(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

func parsePairID(id string) (pairKey, bool) {
	sa, sb, ok := strings.Cut(id, "-")
	if !ok {
		return pairKey{}, false
	}
	a, errA := strconv.Atoi(sa)
	b, errB := strconv.Atoi(sb)
	if errA != nil || errB != nil {
		return pairKey{}, false
	}
	return pairKey{a: a, b: b}, true
}
