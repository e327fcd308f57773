package networking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindowLimiter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(time.Minute, 2, func() time.Time { return now })

	ok, _ := limiter.Allow()
	assert.True(t, ok)
	now = now.Add(10 * time.Second)
	ok, _ = limiter.Allow()
	assert.True(t, ok)

	ok, wait := limiter.Allow()
	assert.False(t, ok)
	assert.Equal(t, 50*time.Second, wait, "the caller waits for the first event to expire")

	now = now.Add(30 * time.Second)
	ok, _ = limiter.Allow()
	assert.False(t, ok)

	now = now.Add(21 * time.Second)
	ok, _ = limiter.Allow()
	assert.True(t, ok, "the first event left the window")
	ok, _ = limiter.Allow()
	assert.False(t, ok, "the second event is still inside the window")
}

func TestSlidingWindowLimiterDisabled(t *testing.T) {
	ok, wait := NewSlidingWindowLimiter(0, 0, nil).Allow()
	assert.True(t, ok)
	assert.Zero(t, wait)

	var nilLimiter *SlidingWindowLimiter
	ok, _ = nilLimiter.Allow()
	assert.True(t, ok)
}
