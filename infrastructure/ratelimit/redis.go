package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"stream-proxy/domain/repository"
	"stream-proxy/infrastructure/logger"
)

// RedisLimiter keeps the sliding-window log in a redis sorted set per
// (scope, client) key, scored by timestamp, so multiple proxy instances share
// one quota. Any backend error fails open: availability over strictness.
type RedisLimiter struct {
	client *redis.Client
	prefix string

	mu      sync.Mutex
	seen    map[string]time.Time
	seenTTL time.Duration

	now func() time.Time
}

type RedisOption func(*RedisLimiter)

// WithSeenTTL sets how long an idle client stays in the local stats view.
func WithSeenTTL(d time.Duration) RedisOption {
	return func(l *RedisLimiter) { l.seenTTL = d }
}

// WithRedisClock overrides the time source for tests.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) { l.now = now }
}

func NewRedisLimiter(client *redis.Client, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		client:  client,
		prefix:  "ratelimit",
		seen:    make(map[string]time.Time),
		seenTTL: 15 * time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit implements repository.IRateLimiter.
func (l *RedisLimiter) Admit(ctx context.Context, clientID string, policy repository.RatePolicy) repository.RateDecision {
	now := l.now()
	key := fmt.Sprintf("%s:%s:%s", l.prefix, policy.Scope, clientID)

	l.mu.Lock()
	l.seen[key] = now
	l.mu.Unlock()

	cutoff := now.Add(-policy.Window)
	member := fmt.Sprintf("%d", now.UnixNano())

	// Prune, append, and count in one MULTI/EXEC so two concurrent checks for
	// the same client cannot both observe count-1 and over-admit.
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff.UnixNano()))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.Expire(ctx, key, policy.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		// Backend unavailable: admit rather than block serving, but make the
		// degraded mode visible.
		logger.GetLogger().WithField("error", err).Warn("Rate limit backend unavailable, failing open")
		return repository.RateDecision{Allowed: true, Remaining: policy.MaxRequests}
	}

	count := int(card.Val())
	if count > policy.MaxRequests {
		// Denied requests do not consume the window; take our stamp back out.
		if err := l.client.ZRem(ctx, key, member).Err(); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Failed removing denied stamp")
		}
		retry := time.Duration(0)
		if vals := oldest.Val(); len(vals) > 0 {
			oldestAt := time.Unix(0, int64(vals[0].Score))
			retry = oldestAt.Add(policy.Window).Sub(now)
			if retry < 0 {
				retry = 0
			}
		}
		return repository.RateDecision{Allowed: false, Remaining: 0, RetryAfter: retry}
	}

	return repository.RateDecision{Allowed: true, Remaining: policy.MaxRequests - count}
}

// Stats reports the clients recently seen by this instance, pruning any idle
// past the seen TTL so the map stays bounded. Occupancy lives in redis;
// counting every stamp would mean scanning all keys, which the stats endpoint
// does not justify.
func (l *RedisLimiter) Stats() repository.RateStats {
	cutoff := l.now().Add(-l.seenTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, at := range l.seen {
		if at.Before(cutoff) {
			delete(l.seen, k)
		}
	}
	return repository.RateStats{ActiveClients: len(l.seen)}
}

// Cleanup drops stats entries idle past the seen TTL. Window state itself
// lives in redis with its own expiry; only the local view needs bounding.
func (l *RedisLimiter) Cleanup() {
	cutoff := l.now().Add(-l.seenTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, at := range l.seen {
		if at.Before(cutoff) {
			delete(l.seen, k)
		}
	}
}

// StartJanitor cleans the local stats view periodically until the context ends.
func (l *RedisLimiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
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
