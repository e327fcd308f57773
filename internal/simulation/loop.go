package simulation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTickRate is the park's native tick frequency.
const DefaultTickRate = 40.0

// MaxCatchUpSteps bounds how many ticks one wake-up may run after a stall. Time
// beyond that is dropped so a slow host falls behind instead of spiralling.
const MaxCatchUpSteps = 8

// StepFunc advances the simulation by one fixed timestep.
type StepFunc func(step time.Duration)

// Loop calls a StepFunc at a fixed rate on its own goroutine.
type Loop struct {
	step    time.Duration
	fn      StepFunc
	dropped atomic.Int64

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

// NewLoop configures a loop that targets targetHz ticks per second. Non-positive
// rates fall back to DefaultTickRate.
func NewLoop(targetHz float64, fn StepFunc) *Loop {
	step := time.Duration(float64(time.Second) / DefaultTickRate)
	if targetHz > 0 {
		if s := time.Duration(float64(time.Second) / targetHz); s > 0 {
			step = s
		}
	}
	if fn == nil {
		fn = func(time.Duration) {}
	}
	return &Loop{step: step, fn: fn}
}

// Start begins ticking until ctx is cancelled or Stop is called. Starting a running
// loop does nothing.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}
	ctx, l.stop = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.step)
	defer ticker.Stop()
	var owed time.Duration
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			owed += now.Sub(last)
			last = now
			//1.- Run every whole step that is due, up to the catch-up bound.
			steps := int(owed / l.step)
			if steps > MaxCatchUpSteps {
				l.dropped.Add(int64(steps - MaxCatchUpSteps))
				steps = MaxCatchUpSteps
				owed = time.Duration(steps) * l.step
			}
			for i := 0; i < steps && ctx.Err() == nil; i++ {
				l.fn(l.step)
			}
			owed -= time.Duration(steps) * l.step
		}
	}
}

// Stop cancels the loop and waits for the current step to finish. It is safe to call
// more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	done, stop := l.done, l.stop
	l.done, l.stop = nil, nil
	l.mu.Unlock()
	if done == nil {
		return
	}
	stop()
	<-done
}

// StepDuration exposes the configured timestep.
func (l *Loop) StepDuration() time.Duration { return l.step }

// Dropped reports how many ticks were skipped because the loop fell too far behind.
func (l *Loop) Dropped() int64 { return l.dropped.Load() }
