package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func testDBConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		DB: DBConfig{
			Enabled:     true,
			Path:        filepath.Join(t.TempDir(), "test.sqlite"),
			MaxConns:    2,
			SlowQueryMs: 500,
			LogSQL:      false,
		},
	}
}

func TestOpenDB_EnablesWALAndForeignKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := &Store{}

	txr, err := openDB(ctx, testDBConfig(t), s)
	if err != nil {
		t.Fatalf("openDB error: %v", err)
	}
	if txr == nil {
		t.Fatalf("openDB returned nil TxRunner")
	}
	defer func() {
		if c, ok := txr.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}()

	var mode string
	if err := txr.QueryRow(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode query: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := txr.QueryRow(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys query: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpenDB_ParentAlreadyCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Store{}
	txr, err := openDB(ctx, testDBConfig(t), s)
	if err == nil {
		t.Fatalf("expected error due to canceled context, got nil (txr=%T)", txr)
	}
	if txr != nil {
		t.Fatalf("expected nil TxRunner on canceled context, got %T", txr)
	}
}
