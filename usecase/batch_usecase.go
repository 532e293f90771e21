package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stream-proxy/domain/dto"
	"stream-proxy/domain/model"
	"stream-proxy/domain/quality"
	"stream-proxy/domain/repository"
)

// IBatchUsecase defines the batch orchestration operations
type IBatchUsecase interface {
	// RunBatch fans the items out with bounded concurrency. Every item
	// passes the rate limiter against the caller's quota; one item's failure
	// never aborts the others.
	RunBatch(ctx context.Context, clientID string, items []model.BatchItem) (*dto.BatchResponse, error)
}

// BatchUsecase implements batch fan-out over the extraction cache
type BatchUsecase struct {
	cache       repository.IStreamCache
	limiter     repository.IRateLimiter
	policy      repository.RatePolicy
	concurrency int
	maxItems    int
}

// NewBatchUsecase creates a new batch use case instance. policy is the same
// per-client quota individual requests are checked against: batch items get
// no bypass.
func NewBatchUsecase(cache repository.IStreamCache, limiter repository.IRateLimiter, policy repository.RatePolicy, concurrency, maxItems int) IBatchUsecase {
	if concurrency <= 0 {
		concurrency = 10
	}
	if maxItems <= 0 {
		maxItems = 50
	}
	return &BatchUsecase{
		cache:       cache,
		limiter:     limiter,
		policy:      policy,
		concurrency: concurrency,
		maxItems:    maxItems,
	}
}

// RunBatch executes the batch. Results are keyed by the item's composite key;
// the summary counts are derived from the map, never tracked separately.
func (u *BatchUsecase) RunBatch(ctx context.Context, clientID string, items []model.BatchItem) (*dto.BatchResponse, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("batch contains no items")
	}
	if len(items) > u.maxItems {
		return nil, fmt.Errorf("batch exceeds %d items", u.maxItems)
	}

	var mu sync.Mutex
	results := make(map[string]model.BatchResult, len(items))

	// Worker goroutines never return errors: a failed item is a captured
	// result, not a reason to cancel its siblings.
	g := &errgroup.Group{}
	g.SetLimit(u.concurrency)

	for _, item := range items {
		item := item
		g.Go(func() error {
			result := u.runItem(ctx, clientID, item)
			mu.Lock()
			results[item.Key()] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := &dto.BatchResponse{
		BatchID: uuid.NewString(),
		Results: results,
	}
	for _, r := range results {
		if r.Success {
			resp.Successful++
		} else {
			resp.Failed++
		}
	}
	return resp, nil
}

func (u *BatchUsecase) runItem(ctx context.Context, clientID string, item model.BatchItem) model.BatchResult {
	decision := u.limiter.Admit(ctx, clientID, u.policy)
	if !decision.Allowed {
		denied := &model.RateLimitDenied{RetryAfter: decision.RetryAfter}
		return model.BatchResult{Item: item, Success: false, Error: denied.Error(), Kind: "rate_limited"}
	}

	target := quality.Select(item.Quality, quality.DeviceUnknown, quality.BandwidthUnknown)[0]
	source, err := u.cache.GetOrExtract(ctx, item.Platform, item.VideoID, target)
	if err != nil {
		result := model.BatchResult{Item: item, Success: false, Error: err.Error()}
		var extractionErr *model.ExtractionError
		if errors.As(err, &extractionErr) {
			result.Kind = string(extractionErr.Kind)
		}
		return result
	}
	return model.BatchResult{Item: item, Success: true, Payload: source}
}
