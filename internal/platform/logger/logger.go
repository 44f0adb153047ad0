// Package logger wraps zerolog behind opinionated defaults plus
// request-scoped child loggers
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dupehound/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the logger
type Options struct {
	Level       string
	Format      string
	Service     string
	Component   string
	Writer      io.Writer // defaults to stdout; tests capture output here
	WithCaller  bool
	SampleEvery int
}

// FromEnv builds Options through the raw env reader. The raw view exists so
// the logger can boot before the config package (which logs) is usable
func FromEnv() Options {
	rc := raw.New().Prefix("LOG_")
	return Options{
		Level:       strings.ToLower(rc.Get("LEVEL", "debug")),
		Format:      strings.ToLower(rc.Get("FORMAT", "console")),
		Service:     rc.Get("SERVICE", ""),
		Component:   rc.Get("COMPONENT", ""),
		WithCaller:  rc.GetBool("CALLER", false),
		SampleEvery: rc.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger]
	inited atomic.Bool
)

// Logger is the project-wide logging type. An alias today so call sites and
// struct fields stay stable if the backend ever changes
type Logger = zerolog.Logger

// Get returns the process-wide root logger, initializing from env on first use
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init configures zerolog and builds the root logger. Only the first call
// wins; later calls are no-ops
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		lvl := parseLevel(opt.Level)

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(lvl).With().Timestamp()

		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			ctx = ctx.Str("go_version", bi.GoVersion)
		}
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		if opt.Component != "" {
			ctx = ctx.Str("component", opt.Component)
		}

		log := ctx.Logger()
		if opt.WithCaller {
			log = log.With().Caller().Logger()
		}
		if opt.SampleEvery > 1 {
			log = log.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
		}

		root.Store(&log)
		inited.Store(true)
	})
}

// parseLevel maps the LOG_LEVEL strings; unknown input stays at debug
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.DebugLevel
	}
}

type ctxKey struct{ name string }

var (
	keyRequestID = ctxKey{"req_id"}
	keyAccountID = ctxKey{"account_id"}
)

// WithRequest annotates ctx so C picks up request_id and account_id. The
// auth middleware calls it once the account is resolved
func WithRequest(ctx context.Context, reqID, accountID string) context.Context {
	if reqID != "" {
		ctx = context.WithValue(ctx, keyRequestID, reqID)
	}
	if accountID != "" {
		ctx = context.WithValue(ctx, keyAccountID, accountID)
	}
	return ctx
}

// C returns a child logger carrying whatever WithRequest stored on ctx.
// A bare context yields the root logger's fields only
func C(ctx context.Context) *Logger {
	builder := Get().With()
	if v, ok := ctx.Value(keyRequestID).(string); ok && v != "" {
		builder = builder.Str("request_id", v)
	}
	if v, ok := ctx.Value(keyAccountID).(string); ok && v != "" {
		builder = builder.Str("account_id", v)
	}
	ll := builder.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
