package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"stream-proxy/domain/model"
	"stream-proxy/domain/quality"
	"stream-proxy/domain/repository"
	"stream-proxy/infrastructure/logger"
)

type entryState int

const (
	stateReady entryState = iota
	stateFailed
)

// entry is owned exclusively by the cache; callers only ever see copies.
type entry struct {
	state     entryState
	source    *model.StreamSource
	err       error
	createdAt time.Time
	expiresAt time.Time
}

// StreamCache memoizes extraction results per (platform, video id, quality)
// key. Concurrent callers for a missing key are coalesced through a
// singleflight group so at most one extraction per key is in flight; every
// waiter receives the same resolution. Failures are negative-cached for a
// short window so a consistently failing upstream is not hammered.
type StreamCache struct {
	extractor   repository.IExtractor
	ttl         time.Duration
	negativeTTL time.Duration
	timeout     time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

type Option func(*StreamCache)

// WithClock overrides the time source, used by tests to advance past TTLs.
func WithClock(now func() time.Time) Option {
	return func(c *StreamCache) { c.now = now }
}

// WithNegativeTTL overrides the negative-cache window.
func WithNegativeTTL(d time.Duration) Option {
	return func(c *StreamCache) { c.negativeTTL = d }
}

// NewStreamCache creates the extraction cache. ttl is the default entry
// lifetime when the extractor gives no expiry hint; timeout bounds a single
// extraction call.
func NewStreamCache(extractor repository.IExtractor, ttl, timeout time.Duration, opts ...Option) *StreamCache {
	c := &StreamCache{
		extractor:   extractor,
		ttl:         ttl,
		negativeTTL: 30 * time.Second,
		timeout:     timeout,
		entries:     make(map[string]*entry),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrExtract returns the cached source for the key, or performs one shared
// extraction on a miss. Expiry is checked lazily here; expired entries are
// dropped and re-extracted.
func (c *StreamCache) GetOrExtract(ctx context.Context, platform, videoID, qualityLabel string) (*model.StreamSource, error) {
	key := model.NormalizeKey(platform, videoID, qualityLabel)
	now := c.now()

	c.mu.Lock()
	if ent, ok := c.entries[key]; ok {
		if now.Before(ent.expiresAt) {
			c.mu.Unlock()
			if ent.state == stateFailed {
				// Within the negative-cache window: replay the original
				// failure without touching the upstream.
				return nil, ent.err
			}
			c.hits.Add(1)
			return snapshot(ent.source), nil
		}
		delete(c.entries, key)
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.extract(platform, videoID, qualityLabel, key)
	})
	if err != nil {
		return nil, err
	}
	return snapshot(v.(*model.StreamSource)), nil
}

// extract performs the upstream call and records the resolution. It runs on a
// detached context: the extraction is shared by every waiter on the key, so a
// single client disconnecting must not cancel it.
func (c *StreamCache) extract(platform, videoID, qualityLabel, key string) (*model.StreamSource, error) {
	// Counted here, inside the singleflight function, so N coalesced waiters
	// record one miss: the counter tracks upstream work incurred, not callers.
	c.misses.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	chain := quality.Select(qualityLabel, quality.DeviceUnknown, quality.BandwidthUnknown)
	source, err := c.extractor.Extract(ctx, platform, videoID, chain)
	now := c.now()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = model.NewExtractionError(model.ErrorKindUnavailable, platform, videoID, "extraction timed out")
		}
		c.mu.Lock()
		c.entries[key] = &entry{
			state:     stateFailed,
			err:       err,
			createdAt: now,
			expiresAt: now.Add(c.negativeTTL),
		}
		c.mu.Unlock()
		logger.GetLogger().WithFields(map[string]interface{}{
			"platform": platform,
			"videoId":  videoID,
			"error":    err,
		}).Warn("Extraction failed, negative-caching result")
		return nil, err
	}

	expires := now.Add(c.ttl)
	if !source.ExpiresAt.IsZero() && source.ExpiresAt.Before(expires) {
		// Direct URLs can expire earlier than our default TTL; never serve a
		// cached URL past the platform's own hint.
		expires = source.ExpiresAt
	}
	c.mu.Lock()
	c.entries[key] = &entry{
		state:     stateReady,
		source:    source,
		createdAt: now,
		expiresAt: expires,
	}
	c.mu.Unlock()
	return source, nil
}

// Invalidate drops an entry immediately, reporting whether one existed. Used
// when an operator knows a direct URL expired early.
func (c *StreamCache) Invalidate(platform, videoID, qualityLabel string) bool {
	key := model.NormalizeKey(platform, videoID, qualityLabel)
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	c.group.Forget(key)
	return ok
}

// Stats returns the hit/miss counters and current entry count.
func (c *StreamCache) Stats() repository.CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()
	return repository.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

// Sweep removes expired entries. Expiry is otherwise lazy; the sweep only
// bounds memory for keys that are never read again.
func (c *StreamCache) Sweep() int {
	now := c.now()
	removed := 0
	c.mu.Lock()
	for key, ent := range c.entries {
		if !now.Before(ent.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// StartJanitor sweeps expired entries periodically until the context ends.
func (c *StreamCache) StartJanitor(ctx context.Context, every time.Duration) {
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
				c.Sweep()
			}
		}
	}()
}

// snapshot copies the source so cache entries stay immutable to callers.
func snapshot(s *model.StreamSource) *model.StreamSource {
	if s == nil {
		return nil
	}
	dup := *s
	if s.Formats != nil {
		dup.Formats = make([]model.Format, len(s.Formats))
		copy(dup.Formats, s.Formats)
	}
	return &dup
}
