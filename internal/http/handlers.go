// Package httpapi serves the park host's HTTP surface: liveness, status, the replay
// index, text metrics and the admin recording trigger.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"parkrep/core/internal/logging"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/simulation"
	"parkrep/core/internal/storage"
)

// DefaultRecordingTicks is the recording length used when a request names none.
const DefaultRecordingTicks = 2400

// ErrNoRecording is returned by a Recorder asked to stop while nothing records.
var ErrNoRecording = errors.New("httpapi: no recording active")

// ReplayLister exposes the replay index.
type ReplayLister interface {
	Entries(limit int) ([]storage.Entry, error)
}

// Recorder starts and stops recordings on the live park.
type Recorder interface {
	StartRecording(ctx context.Context, name string, ticks uint32) (replay.Info, error)
	StopRecording(ctx context.Context) (replay.Info, error)
}

// RateLimiter gates how frequently admin operations may be invoked.
type RateLimiter interface {
	Allow() (bool, time.Duration)
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Status      func() simulation.Status
	Ticks       func() simulation.TickMetricsSnapshot
	Replays     ReplayLister
	Clients     func() int
	Subscribers func() int
	Recorder    Recorder
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the host's HTTP handlers.
type HandlerSet struct {
	opts    Options
	logger  *logging.Logger
	now     func() time.Time
	started time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	opts.AdminToken = strings.TrimSpace(opts.AdminToken)
	return &HandlerSet{opts: opts, logger: logger, now: now, started: now()}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/status", h.StatusHandler())
	mux.HandleFunc("/replays", h.ReplaysHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/recording", h.RecordingHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status        string  `json:"status"`
		Timestamp     string  `json:"timestamp"`
		UptimeSeconds float64 `json:"uptime_seconds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		now := h.now()
		writeJSON(w, http.StatusOK, response{
			Status:        "alive",
			Timestamp:     now.UTC().Format(time.RFC3339Nano),
			UptimeSeconds: now.Sub(h.started).Seconds(),
		})
	}
}

// StatusHandler reports the hosted park and replay manager state.
func (h *HandlerSet) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.opts.Status == nil {
			writeError(w, http.StatusServiceUnavailable, "no park is hosted")
			return
		}
		writeJSON(w, http.StatusOK, h.opts.Status())
	}
}

// ReplaysHandler lists indexed replays newest first. ?limit bounds the result.
func (h *HandlerSet) ReplaysHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.opts.Replays == nil {
			writeError(w, http.StatusServiceUnavailable, "replay index unavailable")
			return
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = parsed
		}
		entries, err := h.opts.Replays.Entries(limit)
		if err != nil {
			logging.FromContext(r.Context(), h.logger).Error("replay listing failed", logging.Error(err))
			writeError(w, http.StatusInternalServerError, "replay index query failed")
			return
		}
		if entries == nil {
			entries = []storage.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"replays": entries})
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		gauge(w, "parkrep_uptime_seconds", "Host uptime in seconds.", "%.0f", h.now().Sub(h.started).Seconds())
		if h.opts.Status != nil {
			status := h.opts.Status()
			gauge(w, "parkrep_park_tick", "Current park tick.", "%d", status.Tick)
			gauge(w, "parkrep_park_entities", "Entities in the hosted park.", "%d", status.Entities)
			fmt.Fprintf(w, "# HELP parkrep_replay_mode Replay manager mode, one series per mode.\n")
			fmt.Fprintf(w, "# TYPE parkrep_replay_mode gauge\n")
			for _, mode := range []replay.Mode{replay.ModeIdle, replay.ModeRecording, replay.ModePlaying, replay.ModeNormalising} {
				fmt.Fprintf(w, "parkrep_replay_mode{mode=%q} %d\n", mode.String(), boolValue(status.Mode == mode.String()))
			}
			gauge(w, "parkrep_playback_desync", "1 while the running playback has diverged.", "%d", boolValue(status.Desync))
		}
		if h.opts.Ticks != nil {
			ticks := h.opts.Ticks()
			gauge(w, "parkrep_tick_duration_avg_seconds", "Average park tick duration.", "%g", ticks.Average.Seconds())
			gauge(w, "parkrep_tick_duration_max_seconds", "Slowest park tick observed.", "%g", ticks.Max.Seconds())
			fmt.Fprintf(w, "# HELP parkrep_ticks_total Park ticks observed.\n")
			fmt.Fprintf(w, "# TYPE parkrep_ticks_total counter\n")
			fmt.Fprintf(w, "parkrep_ticks_total %d\n", ticks.Samples)
			fmt.Fprintf(w, "# HELP parkrep_tick_overruns_total Ticks that took longer than the tick budget.\n")
			fmt.Fprintf(w, "# TYPE parkrep_tick_overruns_total counter\n")
			fmt.Fprintf(w, "parkrep_tick_overruns_total %d\n", ticks.Overruns)
		}
		if h.opts.Clients != nil {
			gauge(w, "parkrep_ws_clients", "Connected WebSocket subscribers.", "%d", h.opts.Clients())
		}
		if h.opts.Subscribers != nil {
			gauge(w, "parkrep_grpc_watchers", "Active gRPC notification streams.", "%d", h.opts.Subscribers())
		}
	}
}

// RecordingHandler starts (POST) or stops (DELETE) a recording of the live park.
// Both require the admin token and share the rate limit.
func (h *HandlerSet) RecordingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context(), h.logger).With(
			logging.String("handler", "recording"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			w.Header().Set("Allow", "POST, DELETE")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if h.opts.AdminToken == "" {
			reqLogger.Warn("recording request denied: admin auth disabled")
			writeError(w, http.StatusForbidden, "admin authentication not configured")
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("recording request denied: unauthorized request")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if h.opts.RateLimiter != nil {
			if ok, wait := h.opts.RateLimiter.Allow(); !ok {
				reqLogger.Warn("recording request denied: rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}
		if h.opts.Recorder == nil {
			writeError(w, http.StatusServiceUnavailable, "recording is unavailable")
			return
		}

		if r.Method == http.MethodDelete {
			info, err := h.opts.Recorder.StopRecording(r.Context())
			if err != nil {
				h.fail(w, reqLogger, "stop recording failed", err)
				return
			}
			reqLogger.Info("recording stopped", logging.String("name", info.Name))
			writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "replay": info})
			return
		}

		query := r.URL.Query()
		name := strings.TrimSpace(query.Get("name"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		ticks := uint32(DefaultRecordingTicks)
		if raw := query.Get("ticks"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || parsed == 0 {
				writeError(w, http.StatusBadRequest, "ticks must be a positive integer")
				return
			}
			ticks = uint32(parsed)
		}
		info, err := h.opts.Recorder.StartRecording(r.Context(), name, ticks)
		if err != nil {
			h.fail(w, reqLogger, "start recording failed", err)
			return
		}
		reqLogger.Info("recording started", logging.String("name", info.Name), logging.Int("ticks", int(ticks)))
		writeJSON(w, http.StatusAccepted, map[string]any{"status": "recording", "replay": info})
	}
}

func (h *HandlerSet) fail(w http.ResponseWriter, logger *logging.Logger, msg string, err error) {
	if errors.Is(err, replay.ErrBusy) || errors.Is(err, ErrNoRecording) {
		logger.Warn(msg, logging.Error(err))
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	logger.Error(msg, logging.Error(err))
	writeError(w, http.StatusInternalServerError, msg)
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) == 1
}

func gauge(w http.ResponseWriter, name, help, format string, value any) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	fmt.Fprintf(w, "%s "+format+"\n", name, value)
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
