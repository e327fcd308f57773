// Package simulation hosts one park: it ticks it at a fixed rate and drives the replay
// manager around every tick.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parkrep/core/internal/actions"
	"parkrep/core/internal/logging"
	"parkrep/core/internal/park"
	"parkrep/core/internal/replay"
	"parkrep/core/internal/snapshots"
)

// ErrStillBusy reports that the manager did not return to idle within the tick budget.
var ErrStillBusy = errors.New("simulation: replay still active")

// HostDeps are the optional surfaces a host reports to.
type HostDeps struct {
	Network  replay.NetworkStatus
	Notifier replay.Notifier
	Viewport replay.Viewport
	Objects  replay.ObjectLoader
	Logger   *logging.Logger
}

// Status summarises the host for status requests.
type Status struct {
	Mode     string       `json:"mode"`
	Tick     uint32       `json:"tick"`
	Park     string       `json:"park"`
	Entities int          `json:"entities"`
	Replay   *replay.Info `json:"replay,omitempty"`
	Desync   bool         `json:"desync"`
	AvgTick  string       `json:"avg_tick"`
	MaxTick  string       `json:"max_tick"`
	Samples  int          `json:"samples"`
	Overruns int          `json:"overruns"`
}

// Host serialises access to one park, its executor and its replay manager.
type Host struct {
	mu      sync.Mutex
	park    *park.Park
	exec    *actions.Executor
	manager *replay.Manager
	monitor *TickMonitor
	log     *logging.Logger
	pending []actions.Action
	lastErr error
}

// NewHost wires a replay manager around p. opts are passed to the manager.
func NewHost(p *park.Park, deps HostDeps, opts ...replay.Option) (*Host, error) {
	if p == nil {
		return nil, fmt.Errorf("simulation: park required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.L()
	}
	exec := actions.NewExecutor(p, logger)
	manager, err := replay.NewManager(replay.Deps{
		World:     p,
		Park:      p,
		Executor:  exec,
		Checksums: p,
		Snapshots: snapshots.NewStore(p),
		Network:   deps.Network,
		Notifier:  deps.Notifier,
		Viewport:  deps.Viewport,
		Objects:   deps.Objects,
	}, append([]replay.Option{replay.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	//1.- Every successful live action lands in the open recording, if any.
	exec.SetRecorder(manager.AddGameAction)
	return &Host{park: p, exec: exec, manager: manager, monitor: NewTickMonitor(), log: logger}, nil
}

// SetAuthoriser installs the live player permission check.
func (h *Host) SetAuthoriser(fn actions.AuthoriseFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.exec.SetAuthoriser(fn)
}

// Submit queues a live action for the next tick.
func (h *Host) Submit(a actions.Action) {
	if a == nil {
		return
	}
	h.mu.Lock()
	h.pending = append(h.pending, a)
	h.mu.Unlock()
}

// Do runs fn with exclusive access to the manager and park, between ticks.
func (h *Host) Do(fn func(m *replay.Manager, p *park.Park) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.manager, h.park)
}

// Step runs one tick: the manager update, queued live actions, then the park.
func (h *Host) Step() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	start := time.Now()
	//1.- The manager runs first so replayed commands precede live ones on a tick.
	err := h.manager.Update()
	for _, a := range h.pending {
		if result := h.exec.Execute(a); !result.OK() {
			h.log.Debug("live action rejected", logging.String("status", result.Status.String()), logging.String("reason", result.Message))
		}
	}
	h.pending = h.pending[:0]
	h.park.Tick()
	h.monitor.Observe(time.Since(start))
	return err
}

// RunUntilIdle steps until the manager is idle and reports how many ticks ran.
func (h *Host) RunUntilIdle(ctx context.Context, limit int) (int, error) {
	var errs []error
	for ticks := 0; ; ticks++ {
		if h.Mode() == replay.ModeIdle {
			return ticks, errors.Join(errs...)
		}
		if limit > 0 && ticks >= limit {
			errs = append(errs, fmt.Errorf("%w after %d ticks", ErrStillBusy, ticks))
			return ticks, errors.Join(errs...)
		}
		if err := ctx.Err(); err != nil {
			return ticks, errors.Join(append(errs, err)...)
		}
		if err := h.Step(); err != nil {
			errs = append(errs, err)
		}
	}
}

// Run ticks the park at hz until ctx ends. Step errors are logged and the last one is
// kept for LastError.
func (h *Host) Run(ctx context.Context, hz float64) {
	loop := NewLoop(hz, func(time.Duration) {
		if err := h.Step(); err != nil {
			h.log.Error("simulation step failed", logging.Error(err))
			h.mu.Lock()
			h.lastErr = err
			h.mu.Unlock()
		}
	})
	h.monitor.SetBudget(loop.StepDuration())
	h.log.Info("simulation running", logging.Duration("step", loop.StepDuration()))
	loop.Start(ctx)
	<-ctx.Done()
	loop.Stop()
	if dropped := loop.Dropped(); dropped > 0 {
		h.log.Warn("simulation fell behind", logging.Int("dropped_ticks", int(dropped)))
	}
}

// LastError returns the most recent step failure seen by Run.
func (h *Host) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Mode reports the replay manager state.
func (h *Host) Mode() replay.Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.manager.Mode()
}

// Park exposes the hosted park. Callers must not use it while Run is active except
// through Do.
func (h *Host) Park() *park.Park { return h.park }

// Metrics returns the tick timing statistics.
func (h *Host) Metrics() TickMetricsSnapshot { return h.monitor.Snapshot() }

// Status summarises the host.
func (h *Host) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	metrics := h.monitor.Snapshot()
	status := Status{
		Mode:     h.manager.Mode().String(),
		Tick:     h.park.CurrentTick(),
		Park:     h.park.Name(),
		Entities: len(h.park.Entities()),
		Desync:   h.manager.IsPlaybackStateMismatching(),
		AvgTick:  metrics.Average.String(),
		MaxTick:  metrics.Max.String(),
		Samples:  metrics.Samples,
		Overruns: metrics.Overruns,
	}
	if info, ok := h.manager.CurrentReplayInfo(); ok {
		status.Replay = &info
	}
	return status
}

// Close waits for background replay writes.
func (h *Host) Close() error {
	return h.manager.Wait()
}

// ResetMetrics clears the tick timing statistics.
func (h *Host) ResetMetrics() { h.monitor.Reset() }
