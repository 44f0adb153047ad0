package service

import (
	"context"
	json "encoding/json/v2"
	"fmt"
	"sort"

	"dupehound/internal/adapters/llm"
	"dupehound/internal/core/clique"
	"dupehound/internal/core/prompt"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/services/detect/domain"
	"dupehound/internal/services/detect/repo"
	scans "dupehound/internal/services/scans/domain"
)

// verifyStats summarizes one verification pass
type verifyStats struct {
	hits    int
	misses  int
	dropped int
}

// verify turns candidate pairs into edges. Cached verdicts are reused when
// both content hashes still match; the rest go to the model. Batch item
// failures drop the pair, sync failures fail the job
func (s *Strategy) verify(ctx context.Context, st *scanState, pairs []pairKey) ([]clique.Edge, verifyStats, error) {
	var stats verifyStats
	cache := s.Binder.Bind(s.DB)

	edges := make([]clique.Edge, 0, len(pairs))
	var misses []pairKey
	for _, pk := range pairs {
		row, err := cache.GetPair(ctx, st.repoID, pk.a, pk.b)
		if err != nil {
			return nil, stats, err
		}
		if row != nil && row.HashA == st.hash[pk.a] && row.HashB == st.hash[pk.b] {
			var res domain.VerifyResult
			if err := json.Unmarshal([]byte(row.ResultJSON), &res); err == nil {
				stats.hits++
				s.cacheEvent("pairwise", "hit")
				edges = append(edges, pairEdge(pk, res))
				continue
			}
			// unreadable rows are re-verified
		}
		stats.misses++
		s.cacheEvent("pairwise", "miss")
		misses = append(misses, pk)
	}
	if len(misses) == 0 {
		return edges, stats, nil
	}

	budget := st.chatBudget()
	var usage llm.Usage

	persist := func(pk pairKey, res domain.VerifyResult) error {
		doc, err := json.Marshal(res)
		if err != nil {
			return perr.Wrap(err, perr.ErrorCodeJSON, "encode verification")
		}
		if err := cache.PutPair(ctx, repo.PairWrite{
			RepoID:     st.repoID,
			A:          pk.a,
			B:          pk.b,
			HashA:      st.hash[pk.a],
			HashB:      st.hash[pk.b],
			ResultJSON: string(doc),
			Now:        s.now().UTC(),
		}); err != nil {
			return err
		}
		edges = append(edges, pairEdge(pk, res))
		return nil
	}

	if st.svcs.BatchChat && len(misses) > 1 {
		reqs := make([]llm.ChatRequest, 0, len(misses))
		for _, pk := range misses {
			built := prompt.Verify(promptPR(*st.byNum[pk.a]), promptPR(*st.byNum[pk.b]), budget)
			reqs = append(reqs, llm.ChatRequest{
				ID:       fmt.Sprintf("%d-%d", pk.a, pk.b),
				Messages: llm.Messages(built.System, built.User),
			})
		}
		outcomes, err := st.svcs.Chat.ChatBatch(ctx, reqs, llm.BatchOpts{
			ExistingBatchID: st.resume(phaseVerify),
			OnBatchCreated:  s.cursorSetter(ctx, st, phaseVerify),
		})
		if err != nil {
			return nil, stats, err
		}
		for _, o := range outcomes {
			pk, ok := parsePairID(o.ID)
			if !ok {
				continue
			}
			if o.Err != nil {
				stats.dropped++
				s.Log.Warn().Str("pair", o.ID).Err(o.Err).Msg("verify item failed, dropping pair")
				continue
			}
			usage.Add(o.Usage)
			res, parseErr := ParseVerify(o.Response)
			if parseErr != nil {
				stats.dropped++
				s.Log.Warn().Str("pair", o.ID).Err(parseErr).Msg("verify reply unreadable, dropping pair")
				continue
			}
			if err := persist(pk, res); err != nil {
				return nil, stats, err
			}
		}
		if err := s.clearCursor(ctx, st); err != nil {
			return nil, stats, err
		}
	} else {
		for _, pk := range misses {
			built := prompt.Verify(promptPR(*st.byNum[pk.a]), promptPR(*st.byNum[pk.b]), budget)
			out, err := st.svcs.Chat.Chat(ctx, llm.Messages(built.System, built.User))
			if err != nil {
				return nil, stats, err
			}
			usage.Add(out.Usage)
			res, err := ParseVerify(out.Response)
			if err != nil {
				return nil, stats, err
			}
			if err := persist(pk, res); err != nil {
				return nil, stats, err
			}
		}
	}

	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		if err := s.Scans.AddTokenUsage(ctx, st.scanID, phaseVerify, int64(usage.InputTokens), int64(usage.OutputTokens)); err != nil {
			return nil, stats, err
		}
	}
	return edges, stats, nil
}

func pairEdge(pk pairKey, res domain.VerifyResult) clique.Edge {
	return clique.Edge{
		A:            pk.a,
		B:            pk.b,
		Duplicate:    res.IsDuplicate,
		Confidence:   res.Confidence,
		Relationship: res.Relationship,
	}
}

// rank scores each group's members with one sync chat call per group and
// shapes the final writes, best member first
func (s *Strategy) rank(ctx context.Context, st *scanState, groups []clique.Group) ([]scans.GroupWrite, error) {
	if len(groups) == 0 {
		return nil, nil
	}

	budget := st.chatBudget()
	var usage llm.Usage
	writes := make([]scans.GroupWrite, 0, len(groups))

	for _, g := range groups {
		members := make([]prompt.PR, 0, len(g.Members))
		for _, n := range g.Members {
			members = append(members, promptPR(*st.byNum[n]))
		}
		built := prompt.Rank(members, budget)
		out, err := st.svcs.Chat.Chat(ctx, llm.Messages(built.System, built.User))
		if err != nil {
			return nil, err
		}
		usage.Add(out.Usage)
		entries, err := ParseRank(out.Response)
		if err != nil {
			return nil, err
		}
		writes = append(writes, buildGroup(st, g, entries))
	}

	if err := s.Scans.AddTokenUsage(ctx, st.scanID, phaseRank, int64(usage.InputTokens), int64(usage.OutputTokens)); err != nil {
		return nil, err
	}
	return writes, nil
}

// buildGroup orders a clique by the ranker's scores. Members the ranker
// skipped sink to the bottom with score zero rather than vanish; entries
// for numbers outside the group are ignored
func buildGroup(st *scanState, g clique.Group, entries []domain.RankEntry) scans.GroupWrite {
	inGroup := make(map[int]bool, len(g.Members))
	for _, n := range g.Members {
		inGroup[n] = true
	}

	byNumber := make(map[int]domain.RankEntry, len(entries))
	for _, e := range entries {
		if !inGroup[e.PRNumber] {
			continue
		}
		if _, dup := byNumber[e.PRNumber]; !dup {
			byNumber[e.PRNumber] = e
		}
	}

	ranked := make([]domain.RankEntry, 0, len(g.Members))
	for _, n := range g.Members {
		if e, ok := byNumber[n]; ok {
			ranked = append(ranked, e)
		} else {
			ranked = append(ranked, domain.RankEntry{PRNumber: n})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	write := scans.GroupWrite{
		Confidence:   g.Confidence,
		Relationship: g.Relationship,
	}
	for i, e := range ranked {
		pr := st.byNum[e.PRNumber]
		if i == 0 {
			write.Label = pr.Title
		}
		write.Members = append(write.Members, scans.MemberWrite{
			PRID:      pr.ID,
			Rank:      i + 1,
			Score:     e.Score,
			Rationale: e.Rationale,
		})
	}
	return write
}
