package dto

import "stream-proxy/domain/repository"

// Res is the generic error envelope used by handlers
type Res struct {
	ResponseCode    string `json:"response_code"`
	ResponseMessage string `json:"response_message"`
}

// SystemStatsResponse is the read-only operational snapshot: cache hit/miss
// counters, storage ledger occupancy vs quota, and rate-limit window load
type SystemStatsResponse struct {
	Cache   repository.CacheStats   `json:"cache"`
	Storage repository.StorageStats `json:"storage"`
	Rate    repository.RateStats    `json:"rate_limiter"`
}
