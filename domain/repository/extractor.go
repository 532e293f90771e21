package repository

import (
	"context"

	"stream-proxy/domain/model"
)

// IExtractor is the third-party extraction collaborator: platform + video id +
// an ordered quality fallback chain in, direct media URL and metadata out.
// Implementations are opaque and potentially slow (network I/O to the source
// platform); failures carry a model.ExtractionError kind.
type IExtractor interface {
	Extract(ctx context.Context, platform, videoID string, qualityChain []string) (*model.StreamSource, error)
}
