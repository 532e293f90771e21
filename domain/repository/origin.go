package repository

import (
	"context"
	"io"
)

// IOriginFetcher streams bytes from a resolved direct media URL. The core only
// decides which URL to fetch; byte-range forwarding lives behind this interface.
type IOriginFetcher interface {
	Fetch(ctx context.Context, directURL string) (io.ReadCloser, int64, error)
}
