package repository

import (
	"context"
	"time"
)

// RatePolicy is one window/max pair. The limiter is parameterized per call
// site: heavier endpoints pass stricter policies against the same client key.
// Scope separates the windows of different call sites so a read burst cannot
// consume the download allowance and vice versa.
type RatePolicy struct {
	Scope       string
	Window      time.Duration
	MaxRequests int
}

// RateDecision is the outcome of one admission check. Denial is a normal
// outcome, not an error; RetryAfter is the time until the oldest request in
// the window ages out.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateStats reports current window occupancy for observability.
type RateStats struct {
	ActiveClients int `json:"active_clients"`
	TrackedStamps int `json:"tracked_stamps"`
}

// IRateLimiter performs sliding-window admission control per client key.
// Implementations backed by a remote store fail open on backend errors.
type IRateLimiter interface {
	Admit(ctx context.Context, clientID string, policy RatePolicy) RateDecision
	Stats() RateStats
}
