package usecase

import (
	"context"
	"fmt"

	"stream-proxy/domain/dto"
	"stream-proxy/domain/quality"
	"stream-proxy/domain/repository"
)

// IStreamUsecase defines the stream resolution operations
type IStreamUsecase interface {
	// Resolve maps request hints to a concrete quality and returns the cached
	// or freshly extracted source for it.
	Resolve(ctx context.Context, req *dto.StreamRequest) (*dto.StreamResponse, error)
	// Invalidate drops one cache entry immediately.
	Invalidate(req *dto.InvalidateRequest) bool
}

// StreamUsecase implements stream resolution over the extraction cache
type StreamUsecase struct {
	cache repository.IStreamCache
}

// NewStreamUsecase creates a new stream use case instance
func NewStreamUsecase(cache repository.IStreamCache) IStreamUsecase {
	return &StreamUsecase{cache: cache}
}

// Resolve runs the selector over the request hints, then serves from cache.
func (u *StreamUsecase) Resolve(ctx context.Context, req *dto.StreamRequest) (*dto.StreamResponse, error) {
	if req == nil || req.Platform == "" || req.VideoID == "" {
		return nil, fmt.Errorf("platform and video_id are required")
	}

	chain := quality.Select(req.Quality, deviceClass(req.Device), req.BandwidthKbps)
	target := chain[0]

	source, err := u.cache.GetOrExtract(ctx, req.Platform, req.VideoID, target)
	if err != nil {
		return nil, err
	}

	resolved := source.Quality
	if resolved == "" {
		if available := source.AvailableQualities(); len(available) > 0 {
			if q, resErr := quality.ResolveAvailable(target, available); resErr == nil {
				resolved = q
			}
		}
	}
	if resolved == "" {
		resolved = target
	}

	return &dto.StreamResponse{
		Platform:     source.Platform,
		VideoID:      source.VideoID,
		Title:        source.Title,
		Uploader:     source.Uploader,
		DurationSec:  source.DurationSec,
		DirectURL:    source.DirectURL,
		Quality:      resolved,
		QualityChain: chain,
		Formats:      source.Formats,
		ExpiresAt:    source.ExpiresAt,
	}, nil
}

// Invalidate removes the entry for the given key, defaulting the quality the
// same way Resolve does so operator and client keys line up.
func (u *StreamUsecase) Invalidate(req *dto.InvalidateRequest) bool {
	q := req.Quality
	if q == "" {
		q = quality.Select("", quality.DeviceUnknown, quality.BandwidthUnknown)[0]
	}
	return u.cache.Invalidate(req.Platform, req.VideoID, q)
}

func deviceClass(device string) quality.DeviceClass {
	switch device {
	case "mobile":
		return quality.DeviceMobile
	case "desktop":
		return quality.DeviceDesktop
	default:
		return quality.DeviceUnknown
	}
}
