package sqlite

import (
	"context"
	"database/sql"
)

// schemaDDL is the full schema; every statement is idempotent so EnsureSchema
// can run on every boot
const schemaDDL = `
CREATE TABLE IF NOT EXISTS accounts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	api_key    TEXT NOT NULL UNIQUE,
	label      TEXT,
	config     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repos (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	owner        TEXT NOT NULL,
	name         TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	last_scan_at TEXT,
	UNIQUE (owner, name)
);

CREATE TABLE IF NOT EXISTS prs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id        INTEGER NOT NULL REFERENCES repos(id),
	number         INTEGER NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	body           TEXT,
	author         TEXT NOT NULL DEFAULT '',
	diff_hash      TEXT,
	file_paths     TEXT NOT NULL DEFAULT '[]',
	state          TEXT NOT NULL DEFAULT 'open',
	github_etag    TEXT,
	embed_hash     TEXT,
	intent_summary TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	UNIQUE (repo_id, number)
);

CREATE TABLE IF NOT EXISTS scans (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	repo_id               INTEGER NOT NULL REFERENCES repos(id),
	account_id            INTEGER NOT NULL REFERENCES accounts(id),
	status                TEXT NOT NULL DEFAULT 'queued',
	phase_cursor          TEXT,
	input_tokens          INTEGER NOT NULL DEFAULT 0,
	output_tokens         INTEGER NOT NULL DEFAULT 0,
	token_usage_breakdown TEXT NOT NULL DEFAULT '{}',
	pr_count              INTEGER NOT NULL DEFAULT 0,
	dupe_group_count      INTEGER NOT NULL DEFAULT 0,
	error                 TEXT,
	started_at            TEXT NOT NULL,
	completed_at          TEXT
);

CREATE TABLE IF NOT EXISTS dupe_groups (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id      INTEGER NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	repo_id      INTEGER NOT NULL REFERENCES repos(id),
	label        TEXT NOT NULL DEFAULT '',
	pr_count     INTEGER NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0,
	relationship TEXT NOT NULL DEFAULT 'related'
);

CREATE TABLE IF NOT EXISTS dupe_group_members (
	group_id  INTEGER NOT NULL REFERENCES dupe_groups(id) ON DELETE CASCADE,
	pr_id     INTEGER NOT NULL REFERENCES prs(id),
	"rank"    INTEGER NOT NULL,
	score     REAL NOT NULL DEFAULT 0,
	rationale TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (group_id, pr_id)
);

CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	payload     TEXT NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL DEFAULT 'queued',
	result      TEXT,
	error       TEXT,
	attempts    INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	run_after   TEXT,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pairwise_cache (
	repo_id     INTEGER NOT NULL REFERENCES repos(id),
	pr_a        INTEGER NOT NULL,
	pr_b        INTEGER NOT NULL,
	hash_a      TEXT NOT NULL,
	hash_b      TEXT NOT NULL,
	result_json TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (repo_id, pr_a, pr_b)
);

CREATE INDEX IF NOT EXISTS idx_jobs_dequeue ON jobs (status, run_after, created_at);
CREATE INDEX IF NOT EXISTS idx_prs_repo_state ON prs (repo_id, state);
CREATE INDEX IF NOT EXISTS idx_scans_repo ON scans (repo_id, started_at);
CREATE INDEX IF NOT EXISTS idx_dupe_groups_scan ON dupe_groups (scan_id);
`

// EnsureSchema creates all tables and indexes when absent
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaDDL)
	return err
}
