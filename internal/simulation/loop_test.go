package simulation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopTicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	loop := NewLoop(200, func(step time.Duration) {
		if step != 5*time.Millisecond {
			t.Errorf("unexpected step %v", step)
		}
		ticks.Add(1)
	})
	loop.Start(context.Background())
	loop.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	loop.Stop()
	seen := ticks.Load()
	if seen == 0 {
		t.Fatalf("expected loop to tick at least once")
	}
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != seen {
		t.Fatalf("loop kept ticking after Stop")
	}
	//1.- A second Stop returns immediately.
	loop.Stop()
}

func TestLoopStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop(100, nil)
	loop.Start(ctx)
	cancel()
	stopped := make(chan struct{})
	go func() {
		loop.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("Stop blocked after the context ended")
	}
}

func TestLoopDropsTicksAfterStall(t *testing.T) {
	var calls atomic.Int32
	loop := NewLoop(1000, func(time.Duration) {
		if calls.Add(1) == 1 {
			time.Sleep(40 * time.Millisecond)
		}
	})
	loop.Start(context.Background())
	time.Sleep(120 * time.Millisecond)
	loop.Stop()
	if loop.Dropped() == 0 {
		t.Fatalf("expected ticks beyond the catch-up bound to be dropped")
	}
}

func TestLoopStepDuration(t *testing.T) {
	if step := NewLoop(120, nil).StepDuration(); step != time.Second/120 {
		t.Fatalf("unexpected step duration %v", step)
	}
	if step := NewLoop(0, nil).StepDuration(); step != time.Second/40 {
		t.Fatalf("expected the 40Hz default, got %v", step)
	}
}

func TestTickMonitorAggregates(t *testing.T) {
	monitor := NewTickMonitor()
	monitor.SetBudget(3 * time.Millisecond)
	monitor.Observe(2 * time.Millisecond)
	monitor.Observe(4 * time.Millisecond)
	monitor.Observe(-time.Millisecond)

	snap := monitor.Snapshot()
	want := TickMetricsSnapshot{Samples: 2, Average: 3 * time.Millisecond, Max: 4 * time.Millisecond, Last: 4 * time.Millisecond, Overruns: 1}
	if snap != want {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if hz := snap.AverageHz(); hz < 333 || hz > 334 {
		t.Fatalf("unexpected rate %f", hz)
	}
	monitor.Reset()
	if monitor.Snapshot() != (TickMetricsSnapshot{}) {
		t.Fatalf("expected reset monitor to be empty")
	}
	monitor.Observe(5 * time.Millisecond)
	if monitor.Snapshot().Overruns != 1 {
		t.Fatalf("the budget must survive a reset")
	}
}
