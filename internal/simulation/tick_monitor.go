package simulation

import (
	"sync"
	"time"
)

// TickMetricsSnapshot summarises observed park tick durations.
type TickMetricsSnapshot struct {
	Samples  int
	Average  time.Duration
	Max      time.Duration
	Last     time.Duration
	Overruns int
}

// AverageHz derives the tick rate the sampled durations could sustain.
func (s TickMetricsSnapshot) AverageHz() float64 {
	if s.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Average)
}

// TickMonitor accumulates tick timings. A tick longer than the budget counts as an
// overrun; a zero budget disables overrun counting.
type TickMonitor struct {
	mu     sync.Mutex
	budget time.Duration
	snap   TickMetricsSnapshot
	total  time.Duration
}

// NewTickMonitor constructs an empty monitor with no budget.
func NewTickMonitor() *TickMonitor { return &TickMonitor{} }

// SetBudget sets the per-tick duration beyond which a tick is an overrun.
func (m *TickMonitor) SetBudget(budget time.Duration) {
	m.mu.Lock()
	m.budget = budget
	m.mu.Unlock()
}

// Observe records the duration of a completed tick. Non-positive durations are ignored.
func (m *TickMonitor) Observe(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Samples++
	m.total += d
	m.snap.Average = m.total / time.Duration(m.snap.Samples)
	m.snap.Max = max(m.snap.Max, d)
	m.snap.Last = d
	if m.budget > 0 && d > m.budget {
		m.snap.Overruns++
	}
}

// Snapshot returns a copy of the aggregated statistics.
func (m *TickMonitor) Snapshot() TickMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Reset clears the statistics, for example between playbacks. The budget is kept.
func (m *TickMonitor) Reset() {
	m.mu.Lock()
	m.snap, m.total = TickMetricsSnapshot{}, 0
	m.mu.Unlock()
}
