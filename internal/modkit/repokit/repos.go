// Package repokit provides common types and helpers for repository implementations
package repokit

import "dupehound/internal/platform/store"

// Queryer is the minimal read and write surface for SQL repos. Inside a
// transaction the same surface comes back bound to the tx
type Queryer = store.RowQuerier

// TxRunner can execute a function inside a transaction
type TxRunner = store.TxRunner

type (
	// Rows are the result set of a query
	Rows = store.Rows

	// Row is a single row result from a query
	Row = store.Row
)
