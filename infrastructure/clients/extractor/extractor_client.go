// Package extractor talks to the external extraction service that turns a
// platform video id into a direct media URL. The service is opaque and slow;
// this client only shapes requests, maps failures onto the error taxonomy,
// and keeps the outbound call rate polite.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"golang.org/x/time/rate"

	"stream-proxy/domain/model"
)

// Config holds the extraction-service connection settings.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	OutboundRPS   float64
	OutboundBurst int
}

// Client implements repository.IExtractor over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OutboundRPS == 0 {
		cfg.OutboundRPS = 5
	}
	if cfg.OutboundBurst == 0 {
		cfg.OutboundBurst = 10
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.OutboundRPS), cfg.OutboundBurst),
	}
}

type extractParams struct {
	Platform string `url:"platform"`
	VideoID  string `url:"video_id"`
	Formats  string `url:"formats,omitempty"` // comma-joined fallback chain
}

type extractPayload struct {
	DirectURL   string         `json:"direct_url"`
	Title       string         `json:"title"`
	Uploader    string         `json:"uploader"`
	DurationSec int            `json:"duration_sec"`
	Quality     string         `json:"quality"`
	Formats     []model.Format `json:"formats"`
	ExpiresIn   int            `json:"expires_in"` // seconds, 0 = no hint
}

type extractFailure struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Extract implements repository.IExtractor.
func (c *Client) Extract(ctx context.Context, platform, videoID string, qualityChain []string) (*model.StreamSource, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, model.NewExtractionError(model.ErrorKindUnavailable, platform, videoID, err.Error())
	}

	params, err := query.Values(extractParams{
		Platform: platform,
		VideoID:  videoID,
		Formats:  strings.Join(qualityChain, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding extract params: %w", err)
	}

	url := fmt.Sprintf("%s/extract?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewExtractionError(model.ErrorKindUnavailable, platform, videoID, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.failureFrom(resp, platform, videoID)
	}

	var payload extractPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, model.NewExtractionError(model.ErrorKindUnavailable, platform, videoID, "malformed extractor response")
	}
	if payload.DirectURL == "" {
		return nil, model.NewExtractionError(model.ErrorKindNotFound, platform, videoID, "extractor returned no media URL")
	}

	source := &model.StreamSource{
		Platform:    platform,
		VideoID:     videoID,
		Title:       payload.Title,
		Uploader:    payload.Uploader,
		DurationSec: payload.DurationSec,
		DirectURL:   payload.DirectURL,
		Quality:     payload.Quality,
		Formats:     payload.Formats,
	}
	if payload.ExpiresIn > 0 {
		source.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return source, nil
}

// failureFrom maps an extractor HTTP failure onto the typed error taxonomy.
// The body's kind field wins when present; the status code is the fallback.
func (c *Client) failureFrom(resp *http.Response, platform, videoID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var failure extractFailure
	_ = json.Unmarshal(body, &failure)

	kind := model.ErrorKindUnavailable
	switch failure.Kind {
	case string(model.ErrorKindNotFound):
		kind = model.ErrorKindNotFound
	case string(model.ErrorKindUnsupported):
		kind = model.ErrorKindUnsupported
	case "":
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			kind = model.ErrorKindNotFound
		case http.StatusNotImplemented, http.StatusUnsupportedMediaType:
			kind = model.ErrorKindUnsupported
		}
	}

	message := failure.Error
	if message == "" {
		message = fmt.Sprintf("extractor returned status %d", resp.StatusCode)
	}
	return model.NewExtractionError(kind, platform, videoID, message)
}
