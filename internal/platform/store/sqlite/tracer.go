package sqlite

import (
	"context"
	"strings"
	"time"

	"dupehound/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one executed statement
type QueryEvent struct {
	SQL     string
	Args    any
	Elapsed time.Duration
	Slow    bool
	Err     error
}

// QueryTracer receives an event per statement, including statements run
// inside transactions
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer adapts root into a QueryTracer. The returned logger is pinned at
// debug so statement logs survive a quieter process-wide level
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "sqlite").Logger()
	return &logTracer{log: ll}
}

type logTracer struct{ log logger.Logger }

// OnQuery logs at info, bumping slow statements to warn
func (t *logTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := t.log.Info()
	if ev.Slow {
		evt = t.log.Warn()
	}

	evt.Dur("elapsed_ms", ev.Elapsed).
		Bool("slow", ev.Slow).
		Str("sql", oneline(ev.SQL)).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("sqlite query")
}

// oneline collapses whitespace runs so multi-line SQL fits one log field
func oneline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
