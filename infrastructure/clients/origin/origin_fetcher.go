// Package origin streams bytes from resolved direct media URLs. The core
// decides which URL to fetch; this fetcher only moves bytes.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher implements repository.IOriginFetcher over plain HTTP.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher() *Fetcher {
	// No overall timeout: media transfers are large and long-lived. Dial and
	// header waits are still bounded by the transport defaults.
	return &Fetcher{
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Fetch opens a streaming read of the direct URL. The caller owns the reader.
func (f *Fetcher) Fetch(ctx context.Context, directURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("building origin request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching origin: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("origin returned status %d", resp.StatusCode)
	}
	return resp.Body, resp.ContentLength, nil
}
