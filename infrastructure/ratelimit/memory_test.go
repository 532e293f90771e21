package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stream-proxy/domain/repository"
	"stream-proxy/infrastructure/ratelimit"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func readPolicy(max int) repository.RatePolicy {
	return repository.RatePolicy{Scope: "api", Window: 60 * time.Second, MaxRequests: max}
}

func TestMemoryLimiter_WindowBoundary(t *testing.T) {
	clock := newTestClock()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.WithClock(clock.Now))
	policy := readPolicy(3)

	for i := 0; i < 3; i++ {
		decision := limiter.Admit(context.Background(), "client-1", policy)
		assert.True(t, decision.Allowed, "request %d within the window must pass", i+1)
		clock.Advance(time.Second)
	}

	denied := limiter.Admit(context.Background(), "client-1", policy)
	assert.False(t, denied.Allowed)
	assert.Greater(t, denied.RetryAfter, time.Duration(0))
	assert.Equal(t, 0, denied.Remaining)

	clock.Advance(60 * time.Second)
	readmitted := limiter.Admit(context.Background(), "client-1", policy)
	assert.True(t, readmitted.Allowed, "window elapsed, client must be readmitted")
}

func TestMemoryLimiter_RetryAfterTracksOldestStamp(t *testing.T) {
	clock := newTestClock()
	limiter := ratelimit.NewMemoryLimiter(ratelimit.WithClock(clock.Now))
	policy := readPolicy(2)

	limiter.Admit(context.Background(), "client-1", policy)
	clock.Advance(20 * time.Second)
	limiter.Admit(context.Background(), "client-1", policy)
	clock.Advance(10 * time.Second)

	denied := limiter.Admit(context.Background(), "client-1", policy)
	assert.False(t, denied.Allowed)
	// Oldest stamp is 30s old in a 60s window.
	assert.Equal(t, 30*time.Second, denied.RetryAfter)
}

func TestMemoryLimiter_ClientsIndependent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	policy := readPolicy(1)

	assert.True(t, limiter.Admit(context.Background(), "client-1", policy).Allowed)
	assert.False(t, limiter.Admit(context.Background(), "client-1", policy).Allowed)
	assert.True(t, limiter.Admit(context.Background(), "client-2", policy).Allowed, "other clients keep their own window")
}

func TestMemoryLimiter_ScopesIndependent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	read := repository.RatePolicy{Scope: "api", Window: time.Minute, MaxRequests: 100}
	download := repository.RatePolicy{Scope: "download", Window: time.Minute, MaxRequests: 1}

	assert.True(t, limiter.Admit(context.Background(), "client-1", download).Allowed)
	assert.False(t, limiter.Admit(context.Background(), "client-1", download).Allowed)
	assert.True(t, limiter.Admit(context.Background(), "client-1", read).Allowed,
		"exhausting the download scope must not touch the read scope")
}

func TestMemoryLimiter_ConcurrentAdmissionsNeverOverAdmit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter()
	policy := readPolicy(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Admit(context.Background(), "client-1", policy).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestMemoryLimiter_CleanupDropsIdleWindows(t *testing.T) {
	clock := newTestClock()
	limiter := ratelimit.NewMemoryLimiter(
		ratelimit.WithClock(clock.Now),
		ratelimit.WithIdleTTL(time.Minute),
	)
	policy := readPolicy(5)

	limiter.Admit(context.Background(), "client-1", policy)
	assert.Equal(t, 1, limiter.Stats().ActiveClients)

	clock.Advance(2 * time.Minute)
	limiter.Cleanup()
	assert.Equal(t, 0, limiter.Stats().ActiveClients)
}
