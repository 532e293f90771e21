package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-proxy/domain/model"
	"stream-proxy/infrastructure/cache"
)

// countingExtractor counts upstream calls and can be configured to fail or
// stall, which is the whole point of the cache tests.
type countingExtractor struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error
}

func (e *countingExtractor) Extract(ctx context.Context, platform, videoID string, qualityChain []string) (*model.StreamSource, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}
	return &model.StreamSource{
		Platform:  platform,
		VideoID:   videoID,
		DirectURL: "https://cdn.example.com/" + videoID,
		Quality:   qualityChain[0],
		Formats: []model.Format{
			{ID: "22", Quality: "720p", Height: 720},
			{ID: "18", Quality: "360p", Height: 360},
		},
	}, nil
}

func (e *countingExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeClock is a mutable time source shared with the cache under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStreamCache_SingleFlight(t *testing.T) {
	extractor := &countingExtractor{delay: 50 * time.Millisecond}
	c := cache.NewStreamCache(extractor, 5*time.Minute, 10*time.Second)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*model.StreamSource, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, extractor.callCount(), "concurrent identical requests must share one extraction")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].DirectURL, results[i].DirectURL)
	}

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses, "coalesced waiters share one miss, matching the one upstream call")
	assert.Equal(t, int64(0), stats.Hits)
}

func TestStreamCache_HitThenTTLExpiry(t *testing.T) {
	extractor := &countingExtractor{}
	clock := newFakeClock()
	c := cache.NewStreamCache(extractor, 5*time.Minute, 10*time.Second, cache.WithClock(clock.Now))

	_, err := c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
	require.NoError(t, err)
	_, err = c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.callCount(), "second lookup within TTL must be a hit")

	clock.Advance(5*time.Minute + time.Second)
	_, err = c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
	require.NoError(t, err)
	assert.Equal(t, 2, extractor.callCount(), "expired entry must trigger fresh extraction")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
}

func TestStreamCache_KeyNormalization(t *testing.T) {
	extractor := &countingExtractor{}
	c := cache.NewStreamCache(extractor, 5*time.Minute, 10*time.Second)

	_, err := c.GetOrExtract(context.Background(), "YouTube", "abc123", "720P")
	require.NoError(t, err)
	_, err = c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
	require.NoError(t, err)
	assert.Equal(t, 1, extractor.callCount())
}

func TestStreamCache_NegativeCache(t *testing.T) {
	wantErr := model.NewExtractionError(model.ErrorKindNotFound, "youtube", "gone", "no such video")
	extractor := &countingExtractor{err: wantErr}
	clock := newFakeClock()
	c := cache.NewStreamCache(extractor, 5*time.Minute, 10*time.Second,
		cache.WithClock(clock.Now), cache.WithNegativeTTL(30*time.Second))

	_, err := c.GetOrExtract(context.Background(), "youtube", "gone", "720p")
	require.Error(t, err)

	_, err = c.GetOrExtract(context.Background(), "youtube", "gone", "720p")
	require.Error(t, err)
	assert.Equal(t, 1, extractor.callCount(), "failure within the negative window must not hit upstream")

	var extractionErr *model.ExtractionError
	require.True(t, errors.As(err, &extractionErr), "error kind must survive the cache")
	assert.Equal(t, model.ErrorKindNotFound, extractionErr.Kind)

	clock.Advance(31 * time.Second)
	_, err = c.GetOrExtract(context.Background(), "youtube", "gone", "720p")
	require.Error(t, err)
	assert.Equal(t, 2, extractor.callCount(), "negative window elapsed, fresh attempt expected")
}

func TestStreamCache_TimeoutResolvesAsUnavailable(t *testing.T) {
	extractor := &countingExtractor{delay: 200 * time.Millisecond}
	c := cache.NewStreamCache(extractor, 5*time.Minute, 20*time.Millisecond)

	_, err := c.GetOrExtract(context.Background(), "youtube", "slow", "720p")
	require.Error(t, err)

	var extractionErr *model.ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, model.ErrorKindUnavailable, extractionErr.Kind)
}

func TestStreamCache_Invalidate(t *testing.T) {
	extractor := &countingExtractor{}
	c := cache.NewStreamCache(extractor, 5*time.Minute, 10*time.Second)

	_, err := c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
	require.NoError(t, err)

	assert.True(t, c.Invalidate("youtube", "abc123", "720p"))
	assert.False(t, c.Invalidate("youtube", "abc123", "720p"), "second invalidate finds nothing")

	_, err = c.GetOrExtract(context.Background(), "youtube", "abc123", "720p")
	require.NoError(t, err)
	assert.Equal(t, 2, extractor.callCount())
}

func TestStreamCache_SweepRemovesExpired(t *testing.T) {
	extractor := &countingExtractor{}
	clock := newFakeClock()
	c := cache.NewStreamCache(extractor, time.Minute, 10*time.Second, cache.WithClock(clock.Now))

	_, err := c.GetOrExtract(context.Background(), "youtube", "a", "720p")
	require.NoError(t, err)
	_, err = c.GetOrExtract(context.Background(), "youtube", "b", "720p")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Stats().Entries)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 0, c.Stats().Entries)
}
