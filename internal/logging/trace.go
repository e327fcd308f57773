package logging

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// TraceIDHeader carries trace identifiers between services.
const TraceIDHeader = "X-Trace-ID"

// TraceIDField is the structured field trace identifiers are logged under.
const TraceIDField = "trace_id"

type contextKey int

const (
	loggerKey contextKey = iota
	traceKey
)

// ContextWithLogger stores logger in ctx.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	if logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or fallback, or the global logger.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return L()
}

// TraceIDFromContext returns the trace identifier stored in ctx, if any.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey).(string)
	return id
}

// NewTraceID returns 16 random bytes as hex.
func NewTraceID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().UTC().Format(time.RFC3339Nano)))[:32]
	}
	return hex.EncodeToString(buf[:])
}

// WithTrace stores traceID (or a fresh one) and a logger tagged with it in ctx.
func WithTrace(ctx context.Context, base *Logger, traceID string) (context.Context, *Logger, string) {
	id := strings.TrimSpace(traceID)
	if id == "" {
		id = NewTraceID()
	}
	logger := base.With(String(TraceIDField, id))
	ctx = context.WithValue(ctx, traceKey, id)
	return ContextWithLogger(ctx, logger), logger, id
}

// HTTPTraceMiddleware tags every request with a trace identifier, echoes it in the
// response headers and logs the outcome once the handler returns.
func HTTPTraceMiddleware(base *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, logger, id := WithTrace(r.Context(), base, r.Header.Get(TraceIDHeader))
			w.Header().Set(TraceIDHeader, id)
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			//1.- Upgraded connections outlive the handler call, so only the upgrade is logged.
			if rec.hijacked {
				logger.Debug("connection upgraded", String("path", r.URL.Path))
				return
			}
			logger.Debug("request served",
				String("method", r.Method),
				String("path", r.URL.Path),
				Int("status", rec.code()),
				Duration("elapsed", time.Since(start)),
			)
		})
	}
}

// statusRecorder captures the response code while passing hijacking through for
// WebSocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(p)
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("logging: response writer cannot be hijacked")
	}
	conn, rw, err := hijacker.Hijack()
	if err == nil {
		s.hijacked = true
	}
	return conn, rw, err
}

func (s *statusRecorder) Flush() {
	if flusher, ok := s.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
