package model

import "time"

// StreamSource is the resolved playback source for a single video: the direct
// media URL produced by the extraction layer plus the metadata that came with it.
type StreamSource struct {
	Platform    string    `json:"platform"`
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Uploader    string    `json:"uploader"`
	DurationSec int       `json:"duration_sec"`
	DirectURL   string    `json:"direct_url"`
	Quality     string    `json:"quality"`
	Formats     []Format  `json:"formats,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Format describes one concrete rendition offered by the source platform.
type Format struct {
	ID        string `json:"id"`
	Quality   string `json:"quality"` // e.g. "720p"
	Height    int    `json:"height"`
	Ext       string `json:"ext"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// AvailableQualities returns the quality labels of the source formats,
// in the order the platform reported them.
func (s *StreamSource) AvailableQualities() []string {
	qualities := make([]string, 0, len(s.Formats))
	for _, f := range s.Formats {
		qualities = append(qualities, f.Quality)
	}
	return qualities
}

// BatchItem identifies one video lookup inside a batch request.
type BatchItem struct {
	Platform string `json:"platform"`
	VideoID  string `json:"video_id"`
	Quality  string `json:"quality"`
}

// Key returns the composite key used both for result aggregation and as the
// cache key prefix. Case-normalized so "YouTube" and "youtube" collapse.
func (b BatchItem) Key() string {
	return NormalizeKey(b.Platform, b.VideoID, b.Quality)
}

// BatchResult captures the independent outcome of one batch item.
type BatchResult struct {
	Item    BatchItem     `json:"item"`
	Success bool          `json:"success"`
	Payload *StreamSource `json:"payload,omitempty"`
	Error   string        `json:"error,omitempty"`
	Kind    string        `json:"error_kind,omitempty"`
}
