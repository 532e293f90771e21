package usecase_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-proxy/domain/dto"
	"stream-proxy/domain/repository"
	"stream-proxy/usecase"
)

type fakeResolver struct {
	resp *dto.StreamResponse
	err  error
}

func (f *fakeResolver) Resolve(ctx context.Context, req *dto.StreamRequest) (*dto.StreamResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeResolver) Invalidate(req *dto.InvalidateRequest) bool { return false }

type fakeOrigin struct {
	payload string
	readErr error // surfaced mid-transfer, after the payload bytes
}

func (f *fakeOrigin) Fetch(ctx context.Context, directURL string) (io.ReadCloser, int64, error) {
	body := io.Reader(strings.NewReader(f.payload))
	if f.readErr != nil {
		body = io.MultiReader(body, &failingReader{err: f.readErr})
	}
	return io.NopCloser(body), int64(len(f.payload)), nil
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

type fakeStorage struct {
	mu       sync.Mutex
	recorded map[string]int64
	touched  map[string]time.Time
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{recorded: make(map[string]int64), touched: make(map[string]time.Time)}
}

func (f *fakeStorage) Record(path string, sizeBytes int64) {
	f.mu.Lock()
	f.recorded[path] = sizeBytes
	f.mu.Unlock()
}

func (f *fakeStorage) Touch(path string, at time.Time) {
	f.mu.Lock()
	f.touched[path] = at
	f.mu.Unlock()
}

func (f *fakeStorage) EnforceQuota() []string         { return nil }
func (f *fakeStorage) Remove(path string) error       { return nil }
func (f *fakeStorage) Rebuild() error                 { return nil }
func (f *fakeStorage) Stats() repository.StorageStats { return repository.StorageStats{} }

func downloadFixture(dir, payload string) (usecase.IDownloadUsecase, *fakeStorage) {
	resolver := &fakeResolver{resp: &dto.StreamResponse{
		DirectURL:    "https://cdn.example.com/abc123",
		Quality:      "720p",
		QualityChain: []string{"720p", "480p", "best"},
	}}
	storage := newFakeStorage()
	return usecase.NewDownloadUsecase(resolver, &fakeOrigin{payload: payload}, storage, dir), storage
}

func TestDownloadUsecase_WritesFileAndRecords(t *testing.T) {
	dir := t.TempDir()
	uc, storage := downloadFixture(dir, "media-bytes")

	resp, err := uc.Download(context.Background(), &dto.StreamRequest{
		Platform: "youtube", VideoID: "abc123", Quality: "720p",
	})
	require.NoError(t, err)

	content, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Equal(t, "media-bytes", string(content))
	assert.Equal(t, int64(len("media-bytes")), resp.SizeBytes)
	assert.Equal(t, resp.SizeBytes, storage.recorded[resp.Path])
}

func TestDownloadUsecase_ConcurrentSameKeyLeavesIntactFile(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Repeat("0123456789abcdef", 4096)
	uc, _ := downloadFixture(dir, payload)
	req := &dto.StreamRequest{Platform: "youtube", VideoID: "abc123", Quality: "720p"}

	const writers = 8
	var wg sync.WaitGroup
	paths := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := uc.Download(context.Background(), req)
			if err != nil {
				errs[i] = err
				return
			}
			paths[i] = resp.Path
		}()
	}
	wg.Wait()
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
	}

	// Same request hints resolve to one canonical path; whatever rename won,
	// the bytes must be one complete copy, never an interleaving.
	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, payload, string(content))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.part"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must not survive a completed download")
}

func TestDownloadUsecase_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	resolver := &fakeResolver{resp: &dto.StreamResponse{
		DirectURL:    "https://cdn.example.com/abc123",
		Quality:      "720p",
		QualityChain: []string{"720p", "best"},
	}}
	origin := &fakeOrigin{payload: "partial-bytes", readErr: fmt.Errorf("connection reset mid-transfer")}
	uc := usecase.NewDownloadUsecase(resolver, origin, newFakeStorage(), dir)

	_, err := uc.Download(context.Background(), &dto.StreamRequest{
		Platform: "youtube", VideoID: "abc123", Quality: "720p",
	})
	require.Error(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "a failed transfer must leave neither the file nor a temp file behind")
}

func TestDownloadUsecase_LocalPathTouchesLedger(t *testing.T) {
	dir := t.TempDir()
	uc, storage := downloadFixture(dir, "media-bytes")
	req := &dto.StreamRequest{Platform: "youtube", VideoID: "abc123", Quality: "720p"}

	resp, err := uc.Download(context.Background(), req)
	require.NoError(t, err)

	path, err := uc.LocalPath(req)
	require.NoError(t, err)
	assert.Equal(t, resp.Path, path)
	assert.Contains(t, storage.touched, path, "serving a file must refresh its access time")
}

func TestDownloadUsecase_LocalPathMissesUnknownFile(t *testing.T) {
	uc, storage := downloadFixture(t.TempDir(), "media-bytes")

	_, err := uc.LocalPath(&dto.StreamRequest{Platform: "youtube", VideoID: "never-downloaded", Quality: "720p"})
	require.Error(t, err)
	assert.Empty(t, storage.touched)
}
