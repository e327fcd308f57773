package networking

import (
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most limit events within any window. A zero
// window or limit disables it. The hub gives each subscriber one for inbound
// requests and the HTTP admin endpoints share one.
type SlidingWindowLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu     sync.Mutex
	events []time.Time
}

// NewSlidingWindowLimiter constructs a limiter allowing up to limit events per window.
func NewSlidingWindowLimiter(window time.Duration, limit int, timeSource func() time.Time) *SlidingWindowLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &SlidingWindowLimiter{window: window, limit: limit, now: timeSource}
}

// Allow records an event when the window has room. Otherwise it reports how long the
// caller has to wait until the oldest event expires.
func (l *SlidingWindowLimiter) Allow() (bool, time.Duration) {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	//1.- Drop events that left the window; the slice stays ordered oldest first.
	cutoff := now.Add(-l.window)
	expired := 0
	for expired < len(l.events) && !l.events[expired].After(cutoff) {
		expired++
	}
	l.events = append(l.events[:0], l.events[expired:]...)
	if len(l.events) >= l.limit {
		return false, l.events[0].Sub(cutoff)
	}
	l.events = append(l.events, now)
	return true, 0
}
