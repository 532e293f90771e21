package usecase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stream-proxy/domain/dto"
	"stream-proxy/domain/quality"
	"stream-proxy/domain/repository"
	"stream-proxy/infrastructure/logger"
)

// IDownloadUsecase defines the download materialization operations
type IDownloadUsecase interface {
	// Download resolves the source, streams it into the storage directory,
	// records the bytes in the ledger and enforces the quota.
	Download(ctx context.Context, req *dto.StreamRequest) (*dto.DownloadResponse, error)
	// LocalPath returns the on-disk path a prior download of the same request
	// produced, refreshing its ledger access time so serving it keeps the
	// file out of the next eviction pass.
	LocalPath(req *dto.StreamRequest) (string, error)
}

// DownloadUsecase implements downloads over the origin fetcher and storage ledger
type DownloadUsecase struct {
	streams IStreamUsecase
	origin  repository.IOriginFetcher
	storage repository.IStorageManager
	dir     string
}

// NewDownloadUsecase creates a new download use case instance
func NewDownloadUsecase(streams IStreamUsecase, origin repository.IOriginFetcher, storage repository.IStorageManager, dir string) IDownloadUsecase {
	return &DownloadUsecase{streams: streams, origin: origin, storage: storage, dir: dir}
}

// Download materializes one video. A failed write of this request propagates
// to the caller; quota enforcement afterwards only logs what it evicted.
func (u *DownloadUsecase) Download(ctx context.Context, req *dto.StreamRequest) (*dto.DownloadResponse, error) {
	resolved, err := u.streams.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	body, _, err := u.origin.Fetch(ctx, resolved.DirectURL)
	if err != nil {
		return nil, fmt.Errorf("fetching media: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	// Named by the selector's target quality, not the rendition the extractor
	// actually resolved, so later lookups with the same hints find the file.
	path := filepath.Join(u.dir, downloadFilename(req.Platform, req.VideoID, resolved.QualityChain[0]))

	// Write to a private temp file and rename into place, so concurrent
	// downloads of the same video never interleave writes on the final path.
	f, err := os.CreateTemp(u.dir, filepath.Base(path)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	tmpPath := f.Name()
	written, err := io.Copy(f, body)
	closeErr := f.Close()
	if err != nil || closeErr != nil {
		// A partial file is worthless; remove it rather than letting it sit
		// in the ledgerless gap until the next rebuild.
		_ = os.Remove(tmpPath)
		if err == nil {
			err = closeErr
		}
		return nil, fmt.Errorf("writing media: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("finalizing file: %w", err)
	}

	u.storage.Record(path, written)
	if evicted := u.storage.EnforceQuota(); len(evicted) > 0 {
		logger.GetLogger().WithFields(map[string]interface{}{
			"evicted": evicted,
			"trigger": path,
		}).Info("Quota enforcement evicted files")
	}

	return &dto.DownloadResponse{
		Path:      path,
		SizeBytes: written,
		Quality:   resolved.Quality,
	}, nil
}

// LocalPath maps the request hints to the canonical filename and checks the
// file exists. The lookup uses the selector's target quality, so it finds the
// file a download with the same hints wrote.
func (u *DownloadUsecase) LocalPath(req *dto.StreamRequest) (string, error) {
	if req == nil || req.Platform == "" || req.VideoID == "" {
		return "", fmt.Errorf("platform and video_id are required")
	}
	target := quality.Select(req.Quality, deviceClass(req.Device), req.BandwidthKbps)[0]
	path := filepath.Join(u.dir, downloadFilename(req.Platform, req.VideoID, target))
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	u.storage.Touch(path, time.Now())
	return path, nil
}

// downloadFilename builds a filesystem-safe name from the request triple.
func downloadFilename(platform, videoID, quality string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			default:
				return '_'
			}
		}, s)
	}
	return fmt.Sprintf("%s_%s_%s.mp4", clean(strings.ToLower(platform)), clean(videoID), clean(quality))
}
