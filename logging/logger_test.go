package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTraceIDsInjected(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Service: "beaconrange", Module: "test", Level: "info"}, &buf)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.With("beacon", "aa").InfoContext(ctx, "sample processed")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec["trace_id"] != sc.TraceID().String() || rec["span_id"] != sc.SpanID().String() {
		t.Errorf("trace ids missing: %v", rec)
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("time key should be renamed to timestamp: %v", rec)
	}
	if rec["service"] != "beaconrange" || rec["beacon"] != "aa" {
		t.Errorf("attributes missing: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Level: "warn"}, &buf)
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info must be filtered at warn level: %q", buf.String())
	}

	SetLevel("debug")
	defer SetLevel("info")
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug must pass after SetLevel: %q", buf.String())
	}
}

func TestOutputBoth(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "run.log")
	l := newLogger(Config{Level: "info", Output: "both", File: file, MaxSize: 1}, &buf)
	l.Info("tee")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "tee") || !strings.Contains(buf.String(), "tee") {
		t.Errorf("record should reach both outputs: file=%q stdout=%q", raw, buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" || ParseLevel("bogus").String() != "INFO" {
		t.Error("unexpected level mapping")
	}
}
