package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"parkrep/core/internal/config"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			t.Fatalf("decode line %q: %v", line, err)
		}
		out = append(out, payload)
	}
	return out
}

func TestWriterLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriterLogger(&buf, "info")
	if err != nil {
		t.Fatalf("NewWriterLogger: %v", err)
	}
	logger.With(String("replay", "demo")).Warn("checksum mismatch",
		Uint32("tick", 42),
		Error(errors.New("boom")),
	)
	logger.Debug("filtered out")

	lines := decodeLines(t, buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d: %q", len(lines), buf.String())
	}
	payload := lines[0]
	if payload["level"] != "warn" || payload["message"] != "checksum mismatch" {
		t.Fatalf("unexpected level/message: %v", payload)
	}
	if payload["replay"] != "demo" || payload["tick"] != float64(42) || payload["error"] != "boom" {
		t.Fatalf("unexpected fields: %v", payload)
	}
	if payload["service"] != "parkrep" {
		t.Fatalf("expected service field, got %v", payload["service"])
	}
}

func TestLaterFieldsOverrideAndKeepOrder(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriterLogger(&buf, "debug")
	if err != nil {
		t.Fatalf("NewWriterLogger: %v", err)
	}
	logger.sink.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	logger.With(String("mode", "idle")).Info("tick", String("mode", "playing"), Duration("elapsed", 1500*time.Millisecond))

	want := `{"timestamp":"2024-05-06T07:08:09Z","level":"info","message":"tick","service":"parkrep","mode":"playing","elapsed":"1.5s"}`
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("unexpected line\n got %s\nwant %s", got, want)
	}
	if !logger.Enabled(DebugLevel) {
		t.Fatalf("debug logger should enable debug")
	}
}

func TestParseLevel(t *testing.T) {
	for raw, want := range map[string]Level{"": InfoLevel, "DEBUG": DebugLevel, " warning ": WarnLevel, "error": ErrorLevel, "fatal": FatalLevel} {
		got, err := ParseLevel(raw)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}
	if _, err := NewWriterLogger(nil, "verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if Level(42).String() != "info" {
		t.Fatalf("out of range levels render as info")
	}
}

func TestHTTPTraceMiddlewarePropagatesTraceID(t *testing.T) {
	var buf bytes.Buffer
	base, err := NewWriterLogger(&buf, "debug")
	if err != nil {
		t.Fatalf("NewWriterLogger: %v", err)
	}
	var seen string
	handler := HTTPTraceMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		FromContext(r.Context(), nil).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set(TraceIDHeader, "abc123")
	handler.ServeHTTP(rr, req)

	if seen != "abc123" || rr.Header().Get(TraceIDHeader) != "abc123" {
		t.Fatalf("trace id not propagated: ctx=%q header=%q", seen, rr.Header().Get(TraceIDHeader))
	}
	lines := decodeLines(t, buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected handler and access lines, got %q", buf.String())
	}
	if lines[0][TraceIDField] != "abc123" || lines[1]["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected lines %v", lines)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if generated := rr.Header().Get(TraceIDHeader); len(generated) != 32 {
		t.Fatalf("expected a generated 32 character trace id, got %q", generated)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	fallback := NewTestLogger()
	if FromContext(context.Background(), fallback) != fallback {
		t.Fatalf("expected the fallback logger")
	}
	if FromContext(context.Background(), nil) != L() {
		t.Fatalf("expected the global logger")
	}
}

func TestRotatingFileRotatesAndCompresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parkrep.log")
	file, err := openRotatingFile(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatalf("openRotatingFile: %v", err)
	}
	defer file.Close()
	//1.- Shrink the threshold so every further write rotates.
	file.limit = 16
	for i := 0; i < 3; i++ {
		if _, err := file.Write([]byte("0123456789abcdef\n")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := file.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	backups, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".gz") {
		t.Fatalf("expected one compressed backup after pruning, got %v", backups)
	}
	current, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read current log: %v", err)
	}
	if string(current) != "0123456789abcdef\n" {
		t.Fatalf("expected only the last line in the live file, got %q", current)
	}
}

func TestOpenRotatingFileValidatesLimits(t *testing.T) {
	_, err := openRotatingFile(config.LoggingConfig{Path: filepath.Join(t.TempDir(), "x.log"), MaxSizeMB: 0, MaxBackups: -1})
	if err == nil || !strings.Contains(err.Error(), "PARKREP_LOG_MAX_SIZE_MB") || !strings.Contains(err.Error(), "PARKREP_LOG_MAX_BACKUPS") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}
