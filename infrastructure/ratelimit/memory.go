// Package ratelimit implements sliding-window-log admission control per
// client key. Two stores exist: an in-memory one and a redis-backed one for
// multi-instance deployments. Denial is a normal outcome carrying the time
// until the oldest request ages out of the window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"stream-proxy/domain/repository"
)

type window struct {
	stamps   []time.Time
	lastSeen time.Time
}

// MemoryLimiter keeps one timestamp log per (scope, client) key behind a
// single mutex, making each admission check atomic: two concurrent checks for
// the same client cannot both observe count-1 and over-admit.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window

	idleTTL      time.Duration
	cleanupEvery time.Duration

	now func() time.Time
}

type MemoryOption func(*MemoryLimiter)

// WithIdleTTL sets how long an untouched client window survives.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.idleTTL = d }
}

// WithCleanupEvery sets the janitor interval.
func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.cleanupEvery = d }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		windows:      make(map[string]*window),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit implements repository.IRateLimiter.
func (l *MemoryLimiter) Admit(_ context.Context, clientID string, policy repository.RatePolicy) repository.RateDecision {
	now := l.now()
	key := policy.Scope + "|" + clientID

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	w.lastSeen = now

	cutoff := now.Add(-policy.Window)
	kept := w.stamps[:0]
	for _, s := range w.stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= policy.MaxRequests {
		retry := w.stamps[0].Add(policy.Window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return repository.RateDecision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	w.stamps = append(w.stamps, now)
	return repository.RateDecision{
		Allowed:   true,
		Remaining: policy.MaxRequests - len(w.stamps),
	}
}

// Stats reports window occupancy across all tracked clients.
func (l *MemoryLimiter) Stats() repository.RateStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamps := 0
	for _, w := range l.windows {
		stamps += len(w.stamps)
	}
	return repository.RateStats{ActiveClients: len(l.windows), TrackedStamps: stamps}
}

// Cleanup drops windows idle past the TTL.
func (l *MemoryLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, w := range l.windows {
		if w.lastSeen.Before(cutoff) {
			delete(l.windows, k)
		}
	}
}

// StartJanitor cleans idle windows periodically until the context ends.
func (l *MemoryLimiter) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}
	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
