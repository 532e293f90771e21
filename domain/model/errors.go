package model

import (
	"fmt"
	"time"
)

// ErrorKind classifies extraction failures so the HTTP boundary can map them
// to distinct responses. The cache stores and replays them without rewriting.
type ErrorKind string

const (
	ErrorKindNotFound    ErrorKind = "not_found"   // video or platform invalid
	ErrorKindUnavailable ErrorKind = "unavailable" // upstream transient failure, incl. timeouts
	ErrorKindUnsupported ErrorKind = "unsupported" // platform or feature not handled
)

// ExtractionError is the typed failure of the extraction collaborator.
type ExtractionError struct {
	Kind     ErrorKind
	Platform string
	VideoID  string
	Message  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s for %s/%s: %s", e.Kind, e.Platform, e.VideoID, e.Message)
}

// NewExtractionError builds a typed extraction failure.
func NewExtractionError(kind ErrorKind, platform, videoID, message string) *ExtractionError {
	return &ExtractionError{Kind: kind, Platform: platform, VideoID: videoID, Message: message}
}

// RateLimitDenied reports a sliding-window denial. It is a first-class outcome
// rather than an internal fault; handlers translate it into a 429.
type RateLimitDenied struct {
	RetryAfter time.Duration
}

func (e *RateLimitDenied) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}
