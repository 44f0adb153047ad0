package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dupehound/internal/platform/store/sqlite"
)

// dbAdapter wraps sqlite.DB and implements RowQuerier + TxRunner
// it also emits query trace events when a tracer is configured on sqlite.DB
type dbAdapter struct {
	d *sqlite.DB
}

func newDBAdapter(d *sqlite.DB) *dbAdapter { return &dbAdapter{d: d} }

func (a *dbAdapter) Ping(ctx context.Context) error {
	if a == nil {
		return errors.New("sqlite: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *dbAdapter) Close() error { a.d.Close(); return nil }

func (a *dbAdapter) Exec(ctx context.Context, sqlText string, args ...any) (CommandTag, error) {
	start := time.Now()
	res, err := a.d.SQL.ExecContext(ctx, sqlText, args...)
	a.emit(ctx, sqlText, args, start, err)
	return newTag(res), err
}

func (a *dbAdapter) Query(ctx context.Context, sqlText string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := a.d.SQL.QueryContext(ctx, sqlText, args...)
	// emit on open; if you want end-to-end timing across scan, wrap Close and emit there instead
	a.emit(ctx, sqlText, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (a *dbAdapter) QueryRow(ctx context.Context, sqlText string, args ...any) Row {
	start := time.Now()
	r := a.d.SQL.QueryRowContext(ctx, sqlText, args...)
	// wrap to emit after Scan completes, capturing error from Scan
	return row{
		r: r,
		after: func(scanErr error) {
			a.emit(ctx, sqlText, args, start, scanErr)
		},
	}
}

func (a *dbAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	tx, err := a.d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	q := txQuerier{
		tx:     tx,
		tracer: a.d.Tracer,
		slowAt: a.d.SlowQuery,
	}
	if err := fn(q); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (a *dbAdapter) emit(ctx context.Context, sqlText string, args []any, start time.Time, err error) {
	if a == nil || a.d == nil {
		return
	}
	emitQuery(ctx, a.d.Tracer, a.d.SlowQuery, sqlText, args, start, err)
}

// emitQuery is the single trace emit path for pooled and transactional queries
func emitQuery(ctx context.Context, tr sqlite.QueryTracer, slowAt time.Duration, sqlText string, args []any, start time.Time, err error) {
	if tr == nil {
		return
	}
	elapsed := time.Since(start)
	tr.OnQuery(ctx, sqlite.QueryEvent{
		SQL:     sqlText,
		Args:    args,
		Elapsed: elapsed,
		Slow:    slowAt > 0 && elapsed >= slowAt,
		Err:     err,
	})
}

// adapters for database/sql to our tiny Row/Rows/CommandTag

type row struct {
	r     *sql.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r *sql.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { _ = x.r.Close() }
func (x rows) Columns() []string {
	cols, err := x.r.Columns()
	if err != nil {
		return nil
	}
	return cols
}

// tag snapshots sql.Result so we satisfy our CommandTag interface
type tag struct{ affected int64 }

func newTag(res sql.Result) tag {
	if res == nil {
		return tag{}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return tag{}
	}
	return tag{affected: n}
}

func (t tag) String() string      { return fmt.Sprintf("ROWS %d", t.affected) }
func (t tag) RowsAffected() int64 { return t.affected }

// txQuerier satisfies RowQuerier over *sql.Tx so statements inside
// transactions are traced like pooled ones
type txQuerier struct {
	tx     *sql.Tx
	tracer sqlite.QueryTracer
	slowAt time.Duration
}

func (t txQuerier) Exec(ctx context.Context, sqlText string, args ...any) (CommandTag, error) {
	start := time.Now()
	res, err := t.tx.ExecContext(ctx, sqlText, args...)
	t.emit(ctx, sqlText, args, start, err)
	return newTag(res), err
}

func (t txQuerier) Query(ctx context.Context, sqlText string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.tx.QueryContext(ctx, sqlText, args...)
	t.emit(ctx, sqlText, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (t txQuerier) QueryRow(ctx context.Context, sqlText string, args ...any) Row {
	start := time.Now()
	r := t.tx.QueryRowContext(ctx, sqlText, args...)
	return row{
		r: r,
		after: func(scanErr error) {
			t.emit(ctx, sqlText, args, start, scanErr)
		},
	}
}

func (t txQuerier) emit(ctx context.Context, sqlText string, args []any, start time.Time, err error) {
	emitQuery(ctx, t.tracer, t.slowAt, sqlText, args, start, err)
}
