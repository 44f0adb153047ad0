package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"dupehound/internal/platform/store/sqlite"
)

// recordingTracer captures query events for assertions
type recordingTracer struct {
	mu     sync.Mutex
	events []sqlite.QueryEvent
}

func (r *recordingTracer) OnQuery(_ context.Context, ev sqlite.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingTracer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestAdapter(t *testing.T, tracer sqlite.QueryTracer) *dbAdapter {
	t.Helper()
	d, err := sqlite.Open(context.Background(), sqlite.Config{
		Path: filepath.Join(t.TempDir(), "adapter.sqlite"),
	}, tracer)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	a := newDBAdapter(d)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAdapter_ExecQueryColumnsClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newTestAdapter(t, nil)

	if _, err := a.Exec(ctx, `CREATE TABLE sql_adapter_t (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	ct, err := a.Exec(ctx, `INSERT INTO sql_adapter_t (name) VALUES (?), (?)`, "zoe", "ada")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ct.RowsAffected() != 2 {
		t.Fatalf("RowsAffected = %d, want 2", ct.RowsAffected())
	}
	if ct.String() != "ROWS 2" {
		t.Fatalf("tag.String mismatch got=%q", ct.String())
	}

	// QueryRow flow
	var first string
	if err := a.QueryRow(ctx, `SELECT name FROM sql_adapter_t WHERE id=?`, 1).Scan(&first); err != nil {
		t.Fatalf("queryrow scan: %v", err)
	}
	if first != "zoe" {
		t.Fatalf("unexpected name: %q", first)
	}

	// Query + Columns()
	rs, err := a.Query(ctx, `SELECT id, name FROM sql_adapter_t ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rs.Close()

	cols := rs.Columns()
	if len(cols) != 2 || cols[0] != "id" || cols[1] != "name" {
		t.Fatalf("columns mismatch: %#v", cols)
	}

	var (
		ids   []int
		names []string
	)
	for rs.Next() {
		var id int
		var name string
		if err := rs.Scan(&id, &name); err != nil {
			t.Fatalf("rows scan: %v", err)
		}
		ids = append(ids, id)
		names = append(names, name)
	}
	if err := rs.Err(); err != nil {
		t.Fatalf("rows err: %v", err)
	}
	if len(ids) != 2 || names[0] != "zoe" || names[1] != "ada" {
		t.Fatalf("rows mismatch ids=%v names=%v", ids, names)
	}

	// Close is safe, and calling twice should be fine
	if err := a.Close(); err != nil {
		t.Fatalf("adapter close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("adapter close second: %v", err)
	}
}

func TestAdapter_TxCommitAndRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newTestAdapter(t, nil)

	if _, err := a.Exec(ctx, `CREATE TABLE sql_adapter_tx (id INTEGER PRIMARY KEY, val INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	// Commit path
	if err := a.Tx(ctx, func(q RowQuerier) error {
		_, err := q.Exec(ctx, `INSERT INTO sql_adapter_tx (val) VALUES (10)`)
		return err
	}); err != nil {
		t.Fatalf("tx commit: %v", err)
	}

	// Rollback path: fn error discards the write
	boom := errors.New("boom")
	err := a.Tx(ctx, func(q RowQuerier) error {
		if _, err := q.Exec(ctx, `INSERT INTO sql_adapter_tx (val) VALUES (20)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("tx rollback err = %v, want boom", err)
	}

	var n int
	if err := a.QueryRow(ctx, `SELECT COUNT(*) FROM sql_adapter_tx`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows after rollback = %d, want 1", n)
	}
}

func TestAdapter_TracerSeesStatements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := &recordingTracer{}
	a := newTestAdapter(t, tr)

	if _, err := a.Exec(ctx, `CREATE TABLE traced (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	var one int
	if err := a.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("select 1: %v", err)
	}
	if err := a.Tx(ctx, func(q RowQuerier) error {
		_, err := q.Exec(ctx, `INSERT INTO traced (id) VALUES (1)`)
		return err
	}); err != nil {
		t.Fatalf("tx: %v", err)
	}

	// create + select + insert inside tx
	if got := tr.count(); got < 3 {
		t.Fatalf("tracer events = %d, want >= 3", got)
	}
}

func TestAdapter_ErrorPropagation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newTestAdapter(t, nil)

	if _, err := a.Exec(ctx, `NOT VALID SQL`); err == nil {
		t.Fatalf("expected Exec error")
	}
	if _, err := a.Query(ctx, `SELECT * FROM missing_table`); err == nil {
		t.Fatalf("expected Query error")
	}
	var n int
	if err := a.QueryRow(ctx, `SELECT * FROM missing_table`).Scan(&n); err == nil {
		t.Fatalf("expected QueryRow.Scan error")
	}
}
