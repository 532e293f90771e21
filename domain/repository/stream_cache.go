package repository

import (
	"context"

	"stream-proxy/domain/model"
)

// CacheStats is the read-only counter snapshot exposed on the stats endpoint.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// IStreamCache memoizes extraction results per (platform, video id, quality)
// with TTL and single-flight coalescing: concurrent callers for the same key
// share one in-flight extraction and receive the identical result.
type IStreamCache interface {
	GetOrExtract(ctx context.Context, platform, videoID, quality string) (*model.StreamSource, error)
	Invalidate(platform, videoID, quality string) bool
	Stats() CacheStats
}
