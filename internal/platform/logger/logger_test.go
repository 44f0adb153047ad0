package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"fatal":    zerolog.FatalLevel,
		"panic":    zerolog.PanicLevel,
		"  INFO ":  zerolog.InfoLevel,
		"verbose?": zerolog.DebugLevel,
		"":         zerolog.DebugLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitGetNamedC(t *testing.T) {
	var buf bytes.Buffer

	// First Init in the package run wins; every test below shares this root
	Init(Options{
		Level:   "info",
		Format:  "json",
		Service: "dupehound",
		Writer:  &buf,
	})

	Get().Info().Msg("boot")
	out := buf.String()
	if !strings.Contains(out, `"service":"dupehound"`) {
		t.Fatalf("root logger missing service field: %s", out)
	}
	if !strings.Contains(out, `"message":"boot"`) {
		t.Fatalf("root logger missing message: %s", out)
	}

	buf.Reset()
	Get().Debug().Msg("below threshold")
	if buf.Len() != 0 {
		t.Fatalf("debug line emitted at info level: %s", buf.String())
	}

	buf.Reset()
	Named("worker").Info().Msg("claimed job")
	if out := buf.String(); !strings.Contains(out, `"component":"worker"`) {
		t.Fatalf("Named did not attach component: %s", out)
	}

	// Empty component falls back to the root logger
	if Named("") != Get() {
		t.Fatal("Named(\"\") should return the root logger")
	}

	buf.Reset()
	ctx := WithRequest(context.Background(), "req-scan-9", "12")
	C(ctx).Info().Msg("verify pair")
	out = buf.String()
	if !strings.Contains(out, `"request_id":"req-scan-9"`) {
		t.Fatalf("C missing request_id: %s", out)
	}
	if !strings.Contains(out, `"account_id":"12"`) {
		t.Fatalf("C missing account_id: %s", out)
	}

	buf.Reset()
	C(context.Background()).Info().Msg("bare ctx")
	out = buf.String()
	if strings.Contains(out, "request_id") || strings.Contains(out, "account_id") {
		t.Fatalf("bare context leaked request fields: %s", out)
	}
}

func TestWithRequestSkipsEmptyValues(t *testing.T) {
	t.Parallel()

	ctx := WithRequest(context.Background(), "", "")
	if ctx.Value(keyRequestID) != nil {
		t.Fatal("empty request id should not be stored")
	}
	if ctx.Value(keyAccountID) != nil {
		t.Fatal("empty account id should not be stored")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("LOG_SERVICE", "dupehound")
	t.Setenv("LOG_COMPONENT", "detect")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_SAMPLE_EVERY", "4")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" {
		t.Fatalf("level/format not lowercased: %+v", opt)
	}
	if opt.Service != "dupehound" || opt.Component != "detect" {
		t.Fatalf("service/component not read: %+v", opt)
	}
	if !opt.WithCaller || opt.SampleEvery != 4 {
		t.Fatalf("caller/sample not read: %+v", opt)
	}
}
