// Package storage tracks downloaded artifacts against a byte quota and evicts
// oldest-first when the quota is exceeded. It owns the policy only; file I/O
// primitives stay with the OS.
package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"stream-proxy/domain/repository"
	"stream-proxy/infrastructure/logger"
)

type artifact struct {
	sizeBytes  int64
	lastAccess time.Time
}

// Manager is the storage ledger. All mutation (record, touch, evict, remove)
// happens under one mutex so concurrent writers racing with eviction cannot
// corrupt the accounting.
type Manager struct {
	dir        string
	quotaBytes int64

	mu     sync.Mutex
	ledger map[string]*artifact

	now func() time.Time
}

type Option func(*Manager)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(dir string, quotaBytes int64, opts ...Option) *Manager {
	m := &Manager{
		dir:        dir,
		quotaBytes: quotaBytes,
		ledger:     make(map[string]*artifact),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record registers a completed download. A file larger than the whole quota is
// still recorded; it simply forces everything else out on the next
// enforcement pass.
func (m *Manager) Record(path string, sizeBytes int64) {
	m.mu.Lock()
	m.ledger[path] = &artifact{sizeBytes: sizeBytes, lastAccess: m.now()}
	m.mu.Unlock()
}

// Touch refreshes an artifact's access time so recent reads survive eviction.
func (m *Manager) Touch(path string, at time.Time) {
	m.mu.Lock()
	if a, ok := m.ledger[path]; ok {
		a.lastAccess = at
	}
	m.mu.Unlock()
}

// EnforceQuota evicts oldest artifacts until total size fits the quota,
// returning the evicted paths. File and ledger entry go together: when the
// file delete fails the ledger entry is still dropped and the error logged,
// never propagated - an accounting discrepancy must not block serving.
// Calling it again with no new writes evicts nothing.
func (m *Manager) EnforceQuota() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, a := range m.ledger {
		total += a.sizeBytes
	}
	if total <= m.quotaBytes {
		return nil
	}

	type candidate struct {
		path string
		art  *artifact
	}
	candidates := make([]candidate, 0, len(m.ledger))
	for p, a := range m.ledger {
		candidates = append(candidates, candidate{path: p, art: a})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].art.lastAccess.Before(candidates[j].art.lastAccess)
	})

	var evicted []string
	for _, c := range candidates {
		if total <= m.quotaBytes {
			break
		}
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			logger.GetLogger().WithFields(map[string]interface{}{
				"path":  c.path,
				"error": err,
			}).Warn("Failed deleting evicted file, dropping ledger entry anyway")
		}
		delete(m.ledger, c.path)
		total -= c.art.sizeBytes
		evicted = append(evicted, c.path)
	}

	if total > m.quotaBytes {
		logger.GetLogger().WithFields(map[string]interface{}{
			"usedBytes":  total,
			"quotaBytes": m.quotaBytes,
		}).Warn("Eviction could not bring storage under quota")
	}
	return evicted
}

// Remove deletes one artifact explicitly. Unlike eviction, the caller asked
// for this specific file, so a real delete failure is returned.
func (m *Manager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	delete(m.ledger, path)
	return err
}

// Rebuild reconstructs the ledger from a directory scan. The ledger is not
// persisted independently, so this runs on cold start.
func (m *Manager) Rebuild() error {
	entries := make(map[string]*artifact)
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries[path] = &artifact{sizeBytes: info.Size(), lastAccess: info.ModTime()}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(m.dir, 0o755)
		}
		return err
	}

	m.mu.Lock()
	m.ledger = entries
	m.mu.Unlock()
	return nil
}

// Stats returns current ledger occupancy.
func (m *Manager) Stats() repository.StorageStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, a := range m.ledger {
		total += a.sizeBytes
	}
	return repository.StorageStats{
		Files:      len(m.ledger),
		UsedBytes:  total,
		QuotaBytes: m.quotaBytes,
	}
}
