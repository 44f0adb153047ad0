package store

// Generic row helpers shared by the service repositories. They stay thin:
// a query goes in, typed values come out, and absence is reported as
// ErrorCodeNotFound instead of a driver sentinel. Rows satisfies Row, so
// scan funcs written against Row work for single and multi row reads alike

import (
	"context"
	dbsql "database/sql"
	"errors"
	"fmt"

	perr "dupehound/internal/platform/errors"
)

// Scalar reads the first column of the first row into T
func Scalar[T any](ctx context.Context, q RowQuerier, sqlq string, args ...any) (T, error) {
	var v T
	if err := q.QueryRow(ctx, sqlq, args...).Scan(&v); err != nil {
		var zero T
		if errors.Is(err, dbsql.ErrNoRows) {
			return zero, perr.ErrNotFound
		}
		return zero, err
	}
	return v, nil
}

// One maps a single row through scan. Matching more than one row means the
// query itself is wrong and is reported as an error
func One[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sqlq string, args ...any) (T, error) {
	var zero T
	rows, err := q.Query(ctx, sqlq, args...)
	if err != nil {
		return zero, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, err
		}
		return zero, perr.ErrNotFound
	}
	item, err := scan(rows)
	if err != nil {
		return zero, err
	}
	if rows.Next() {
		return zero, fmt.Errorf("query matched more than one row")
	}
	return item, rows.Err()
}

// Many maps every row through scan. An empty result is nil, nil
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sqlq string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sqlq, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
