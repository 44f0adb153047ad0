package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	DB DBConfig
}

// DBConfig configures the embedded sqlite file and tracing
type DBConfig struct {
	Enabled     bool
	Path        string
	MaxConns    int
	LogSQL      bool
	SlowQueryMs int

	// JournalMode passes through to the DSN; empty means WAL
	JournalMode string

	// Guard/boot knobs:
	BusyTimeout time.Duration // default 5s; how long a writer waits on the file lock
	PingTimeout time.Duration // default 3s
}
