package storage_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stream-proxy/infrastructure/storage"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestManager_EnforceQuotaEvictsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	// Quota 6 units, files of 5, 3 and 2 written in that order: the two
	// oldest must go, leaving the newest 2 under the quota.
	m := storage.NewManager(dir, 6)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := writeFile(t, dir, "a.mp4", 5)
	b := writeFile(t, dir, "b.mp4", 3)
	c := writeFile(t, dir, "c.mp4", 2)
	m.Record(a, 5)
	m.Touch(a, base)
	m.Record(b, 3)
	m.Touch(b, base.Add(time.Minute))
	m.Record(c, 2)
	m.Touch(c, base.Add(2*time.Minute))

	evicted := m.EnforceQuota()
	assert.Equal(t, []string{a, b}, evicted)

	stats := m.Stats()
	assert.LessOrEqual(t, stats.UsedBytes, int64(6))
	assert.Equal(t, 1, stats.Files)
	_, err := os.Stat(c)
	assert.NoError(t, err, "newest file must survive")
	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err), "oldest file must be deleted from disk")
}

func TestManager_EnforceQuotaIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := storage.NewManager(dir, 6)

	a := writeFile(t, dir, "a.mp4", 5)
	b := writeFile(t, dir, "b.mp4", 3)
	m.Record(a, 5)
	m.Touch(a, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m.Record(b, 3)

	first := m.EnforceQuota()
	assert.NotEmpty(t, first)
	second := m.EnforceQuota()
	assert.Empty(t, second, "no new writes means no further evictions")
}

func TestManager_UnderQuotaEvictsNothing(t *testing.T) {
	dir := t.TempDir()
	m := storage.NewManager(dir, 100)
	a := writeFile(t, dir, "a.mp4", 5)
	m.Record(a, 5)
	assert.Empty(t, m.EnforceQuota())
}

func TestManager_MissingFileStillLeavesLedgerConsistent(t *testing.T) {
	dir := t.TempDir()
	m := storage.NewManager(dir, 1)

	// Recorded but never written: eviction must drop the ledger entry even
	// though there is no file to delete.
	ghost := filepath.Join(dir, "ghost.mp4")
	m.Record(ghost, 5)

	evicted := m.EnforceQuota()
	assert.Equal(t, []string{ghost}, evicted)
	assert.Equal(t, 0, m.Stats().Files)
}

func TestManager_OversizedFileEvictsEverythingElse(t *testing.T) {
	dir := t.TempDir()
	m := storage.NewManager(dir, 4)

	small := writeFile(t, dir, "small.mp4", 1)
	big := writeFile(t, dir, "big.mp4", 10)
	m.Record(small, 1)
	m.Touch(small, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	m.Record(big, 10)

	// The oversized file is recorded, not rejected. Being newest it is
	// evicted last, after everything older has already gone.
	evicted := m.EnforceQuota()
	assert.Equal(t, []string{small, big}, evicted)
	assert.Equal(t, 0, m.Stats().Files)
}

func TestManager_RebuildFromDisk(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.mp4", 5)
	writeFile(t, dir, "b.mp4", 3)

	m := storage.NewManager(dir, 100)
	require.NoError(t, m.Rebuild())

	stats := m.Stats()
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, int64(8), stats.UsedBytes)
}

func TestManager_RebuildCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-yet")
	m := storage.NewManager(dir, 100)
	require.NoError(t, m.Rebuild())
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}

func TestManager_Remove(t *testing.T) {
	dir := t.TempDir()
	m := storage.NewManager(dir, 100)
	a := writeFile(t, dir, "a.mp4", 5)
	m.Record(a, 5)

	require.NoError(t, m.Remove(a))
	assert.Equal(t, 0, m.Stats().Files)
	// Removing again is not an error: the file is already gone.
	assert.NoError(t, m.Remove(a))
}
