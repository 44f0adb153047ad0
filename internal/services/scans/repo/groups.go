package repo

import (
	"context"

	"dupehound/internal/modkit/repokit"
	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/store"
	"dupehound/internal/services/scans/domain"
)

// ReplaceGroups swaps out every group a scan holds. Callers run it inside a
// transaction so readers never observe a half-written result set
func (r *queries) ReplaceGroups(ctx context.Context, scanID, repoID int64, groups []domain.GroupWrite) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM dupe_groups WHERE scan_id = ?`, scanID); err != nil {
		return perr.FromSQLite(err, "clear dupe groups")
	}

	const insGroup = `
		INSERT INTO dupe_groups (scan_id, repo_id, label, pr_count, confidence, relationship)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	const insMember = `
		INSERT INTO dupe_group_members (group_id, pr_id, "rank", score, rationale)
		VALUES (?, ?, ?, ?, ?)
	`
	for _, g := range groups {
		groupID, err := store.Scalar[int64](ctx, r.q, insGroup,
			scanID, repoID, g.Label, len(g.Members), g.Confidence, g.Relationship,
		)
		if err != nil {
			return perr.FromSQLite(err, "insert dupe group")
		}
		for _, m := range g.Members {
			if _, err := r.q.Exec(ctx, insMember, groupID, m.PRID, m.Rank, m.Score, m.Rationale); err != nil {
				return perr.FromSQLite(err, "insert dupe group member")
			}
		}
	}
	return nil
}

// GroupsByScan returns a scan's groups with members hydrated from prs,
// strongest group first
func (r *queries) GroupsByScan(ctx context.Context, scanID int64) ([]domain.Group, error) {
	const sqlq = `
		SELECT id, scan_id, repo_id, label, confidence, relationship
		  FROM dupe_groups
		 WHERE scan_id = ?
		 ORDER BY confidence DESC, id
	`
	out, err := store.Many(ctx, r.q, scanGroup, sqlq, scanID)
	if err != nil {
		return nil, perr.FromSQLite(err, "list dupe groups")
	}

	for i := range out {
		members, err := r.membersOf(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Members = members
	}
	return out, nil
}

func (r *queries) membersOf(ctx context.Context, groupID int64) ([]domain.GroupMember, error) {
	const sqlq = `
		SELECT m.pr_id, p.number, p.title, m."rank", m.score, m.rationale
		  FROM dupe_group_members m
		  JOIN prs p ON p.id = m.pr_id
		 WHERE m.group_id = ?
		 ORDER BY m."rank", p.number
	`
	out, err := store.Many(ctx, r.q, scanGroupMember, sqlq, groupID)
	if err != nil {
		return nil, perr.FromSQLite(err, "list group members")
	}
	return out, nil
}

func scanGroup(row repokit.Row) (domain.Group, error) {
	var g domain.Group
	if err := row.Scan(&g.ID, &g.ScanID, &g.RepoID, &g.Label, &g.Confidence, &g.Relationship); err != nil {
		return domain.Group{}, perr.FromSQLite(err, "scan dupe group")
	}
	return g, nil
}

func scanGroupMember(row repokit.Row) (domain.GroupMember, error) {
	var m domain.GroupMember
	if err := row.Scan(&m.PRID, &m.Number, &m.Title, &m.Rank, &m.Score, &m.Rationale); err != nil {
		return domain.GroupMember{}, perr.FromSQLite(err, "scan group member")
	}
	return m, nil
}
