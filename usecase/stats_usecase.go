package usecase

import (
	"stream-proxy/domain/dto"
	"stream-proxy/domain/repository"
)

// IStatsUsecase defines the operational stats operations
type IStatsUsecase interface {
	SystemStats() *dto.SystemStatsResponse
}

// StatsUsecase aggregates read-only counters from the three independent
// stores. It takes no locks of its own; each store snapshots under its own
// guard.
type StatsUsecase struct {
	cache   repository.IStreamCache
	storage repository.IStorageManager
	limiter repository.IRateLimiter
}

// NewStatsUsecase creates a new stats use case instance
func NewStatsUsecase(cache repository.IStreamCache, storage repository.IStorageManager, limiter repository.IRateLimiter) IStatsUsecase {
	return &StatsUsecase{cache: cache, storage: storage, limiter: limiter}
}

func (u *StatsUsecase) SystemStats() *dto.SystemStatsResponse {
	return &dto.SystemStatsResponse{
		Cache:   u.cache.Stats(),
		Storage: u.storage.Stats(),
		Rate:    u.limiter.Stats(),
	}
}
