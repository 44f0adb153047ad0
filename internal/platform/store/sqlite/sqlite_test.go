package sqlite

import (
	"strings"
	"testing"
	"time"
)

func TestDSN_Defaults(t *testing.T) {
	t.Parallel()

	dsn := DSN("dupehound.db", 0, "")
	if !strings.HasPrefix(dsn, "file:dupehound.db?") {
		t.Fatalf("dsn = %q, want file: prefix", dsn)
	}
	for _, want := range []string{"_journal_mode=WAL", "_foreign_keys=on", "_busy_timeout=5000"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn = %q, missing %q", dsn, want)
		}
	}
}

func TestDSN_Overrides(t *testing.T) {
	t.Parallel()

	dsn := DSN("/var/lib/dupehound.db", 250*time.Millisecond, "TRUNCATE")
	if !strings.Contains(dsn, "_journal_mode=TRUNCATE") {
		t.Fatalf("dsn = %q, want TRUNCATE journal", dsn)
	}
	if !strings.Contains(dsn, "_busy_timeout=250") {
		t.Fatalf("dsn = %q, want 250ms busy timeout", dsn)
	}
}
