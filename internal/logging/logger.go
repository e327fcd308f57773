// Package logging writes JSON lines: one object per event carrying the timestamp,
// level, message, the service name and any structured fields.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"parkrep/core/internal/config"
)

// Level orders log verbosity.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var levelNames = [...]string{"debug", "info", "warn", "error", "fatal"}

func (l Level) String() string {
	if l < DebugLevel || l > FatalLevel {
		return "info"
	}
	return levelNames[l]
}

// ParseLevel accepts the level names plus "warning" and the empty string (info).
func ParseLevel(raw string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	switch name {
	case "":
		return InfoLevel, nil
	case "warning":
		return WarnLevel, nil
	}
	for i, candidate := range levelNames {
		if candidate == name {
			return Level(i), nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", raw)
}

// Field is one structured attribute.
type Field struct {
	Key   string
	Value any
}

// String returns a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Uint32 returns a uint32 field, used for ticks and type tags.
func Uint32(key string, value uint32) Field { return Field{Key: key, Value: value} }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Duration returns a field rendered like time.Duration.String.
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value.String()} }

// Error returns an error field rendered through its message.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// syncWriter is a destination that can flush to durable storage.
type syncWriter interface {
	io.Writer
	Sync() error
}

// sink is shared by a logger and every logger derived from it with With.
type sink struct {
	mu    sync.Mutex
	out   syncWriter
	level Level
	now   func() time.Time
}

// Logger emits one JSON object per event. Loggers derived with With share the sink.
type Logger struct {
	sink   *sink
	fields []Field
}

const serviceName = "parkrep"

func newLogger(out syncWriter, level Level) *Logger {
	return &Logger{
		sink:   &sink{out: out, level: level, now: time.Now},
		fields: []Field{String("service", serviceName)},
	}
}

// New builds the server logger: a rotating file from cfg mirrored to stdout. The
// result also becomes the global logger.
func New(cfg config.LoggingConfig) (*Logger, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("logging path must be specified")
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	file, err := openRotatingFile(cfg)
	if err != nil {
		return nil, err
	}
	logger := newLogger(teeWriter{file, os.Stdout}, level)
	ReplaceGlobals(logger)
	return logger, nil
}

// NewWriterLogger builds a logger that writes JSON lines to w without rotation.
// The CLI uses it for stderr output and tests use it to capture log lines.
func NewWriterLogger(w io.Writer, level string) (*Logger, error) {
	parsed, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = io.Discard
	}
	return newLogger(nopSync{w}, parsed), nil
}

// NewTestLogger returns a logger that discards output.
func NewTestLogger() *Logger {
	return &Logger{sink: &sink{out: nopSync{io.Discard}, level: DebugLevel, now: time.Now}}
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewTestLogger()
)

// ReplaceGlobals swaps the fallback logger used by L.
func ReplaceGlobals(logger *Logger) {
	if logger == nil {
		return
	}
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// L returns the current global logger.
func L() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// With returns a logger that adds fields to every event. Later keys win.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return L().With(fields...)
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	return &Logger{sink: l.sink, fields: append(merged, fields...)}
}

// Enabled reports whether events at level would be written.
func (l *Logger) Enabled(level Level) bool {
	if l == nil {
		return L().Enabled(level)
	}
	return level >= l.sink.level
}

// Sync flushes buffered output to durable storage.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.out.Sync()
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields ...Field) { l.log(DebugLevel, message, fields) }

// Info logs an informational message.
func (l *Logger) Info(message string, fields ...Field) { l.log(InfoLevel, message, fields) }

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields ...Field) { l.log(WarnLevel, message, fields) }

// Error logs an error message.
func (l *Logger) Error(message string, fields ...Field) { l.log(ErrorLevel, message, fields) }

// Fatal logs a fatal message, flushes and exits the process.
func (l *Logger) Fatal(message string, fields ...Field) { l.log(FatalLevel, message, fields) }

func (l *Logger) log(level Level, message string, fields []Field) {
	if l == nil {
		L().log(level, message, fields)
		return
	}
	if !l.Enabled(level) {
		return
	}
	line := l.encode(level, message, fields)
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.out.Write(line)
	if level == FatalLevel {
		_ = l.sink.out.Sync()
		os.Exit(1)
	}
}

// encode renders the fixed keys first, then the logger and call fields in order. A
// key repeated later overrides the earlier value.
func (l *Logger) encode(level Level, message string, fields []Field) []byte {
	all := make([]Field, 0, 3+len(l.fields)+len(fields))
	all = append(all,
		String("timestamp", l.sink.now().UTC().Format(time.RFC3339Nano)),
		String("level", level.String()),
		String("message", message),
	)
	all = append(append(all, l.fields...), fields...)

	last := make(map[string]int, len(all))
	for i, f := range all {
		last[f.Key] = i
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := 0
	for i, f := range all {
		if last[f.Key] != i {
			continue
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			value, _ = json.Marshal(fmt.Sprint(f.Value))
		}
		key, _ := json.Marshal(f.Key)
		if written > 0 {
			buf.WriteByte(',')
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		written++
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

// teeWriter writes every line to each destination in turn.
type teeWriter []syncWriter

func (t teeWriter) Write(p []byte) (int, error) {
	for _, w := range t {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (t teeWriter) Sync() error {
	var errs []error
	for _, w := range t {
		errs = append(errs, w.Sync())
	}
	return errors.Join(errs...)
}

type nopSync struct{ io.Writer }

func (nopSync) Sync() error { return nil }
