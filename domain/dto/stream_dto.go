package dto

import (
	"time"

	"stream-proxy/domain/model"
)

// StreamRequest represents the hints carried on a single stream/info lookup
type StreamRequest struct {
	Platform      string `json:"platform" binding:"required"`
	VideoID       string `json:"video_id" binding:"required"`
	Quality       string `json:"quality,omitempty"`        // best, worst, auto, <NNN>p
	Device        string `json:"device,omitempty"`         // mobile, desktop
	BandwidthKbps int    `json:"bandwidth_kbps,omitempty"` // 0 = unknown
}

// StreamResponse is the resolved source returned by the info endpoint
type StreamResponse struct {
	Platform     string         `json:"platform"`
	VideoID      string         `json:"video_id"`
	Title        string         `json:"title"`
	Uploader     string         `json:"uploader"`
	DurationSec  int            `json:"duration_sec"`
	DirectURL    string         `json:"direct_url"`
	Quality      string         `json:"quality"`
	QualityChain []string       `json:"quality_chain,omitempty"`
	Formats      []model.Format `json:"formats,omitempty"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// BatchRequest represents the batch endpoint body: an ordered list of
// independent lookups
type BatchRequest struct {
	Items []model.BatchItem `json:"items" binding:"required"`
}

// BatchResponse aggregates per-item outcomes; Successful/Failed are derived
// from the result map, never tracked separately
type BatchResponse struct {
	BatchID    string                       `json:"batch_id"`
	Successful int                          `json:"successful"`
	Failed     int                          `json:"failed"`
	Results    map[string]model.BatchResult `json:"results"`
}

// DownloadResponse reports a materialized file
type DownloadResponse struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Quality   string `json:"quality"`
}

// InvalidateRequest asks the cache to drop one entry immediately
type InvalidateRequest struct {
	Platform string `json:"platform" binding:"required"`
	VideoID  string `json:"video_id" binding:"required"`
	Quality  string `json:"quality,omitempty"`
}
