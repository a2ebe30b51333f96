package http

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0.001, 3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("192.0.2.1"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("192.0.2.1"))
	assert.True(t, rl.Allow("192.0.2.2"))
	assert.Equal(t, 2, rl.size())
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	t.Parallel()

	current := time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, 10*time.Minute)
	rl.now = func() time.Time { return current }

	rl.Allow("192.0.2.1")
	current = current.Add(5 * time.Minute)
	rl.Allow("192.0.2.2")

	current = current.Add(6 * time.Minute)
	rl.evict()

	assert.Equal(t, 1, rl.size())
	rl.mu.Lock()
	_, stale := rl.visitors["192.0.2.1"]
	_, fresh := rl.visitors["192.0.2.2"]
	rl.mu.Unlock()
	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestRateLimiterRunStopsWithContext(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
