package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v want %v", in, got, want)
		}
	}
}

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered, got %s", buf.String())
	}

	logger.Warn("shown", "key", "value")
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["msg"] != "shown" || record["key"] != "value" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected stored logger")
	}
}

func TestContextIdentifiers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSpanID(ctx, "")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("unexpected request id %q", got)
	}
	if got := TraceIDFromContext(ctx); got != "trace-1" {
		t.Fatalf("unexpected trace id %q", got)
	}
	if got := SpanIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty span id got %q", got)
	}
}

func TestStartSpanNestsUnderTrace(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), base)

	ctx, parent := StartSpan(ctx, "outer")
	traceID := TraceIDFromContext(ctx)
	parentID := SpanIDFromContext(ctx)
	if traceID == "" || parentID == "" {
		t.Fatal("expected trace and span ids")
	}

	child, span := StartSpan(ctx, "inner")
	if TraceIDFromContext(child) != traceID {
		t.Fatal("expected child span to share the trace")
	}
	if SpanIDFromContext(child) == parentID {
		t.Fatal("expected a fresh span id")
	}
	if span.Name() != "inner" {
		t.Fatalf("unexpected span name %q", span.Name())
	}

	buf.Reset()
	span.End()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["parent_span_id"] != parentID || record["trace_id"] != traceID {
		t.Fatalf("unexpected span record: %v", record)
	}
	parent.End()
}
