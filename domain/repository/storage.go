package repository

import "time"

// StorageStats reports current ledger occupancy against the quota.
type StorageStats struct {
	Files      int   `json:"files"`
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// IStorageManager owns the policy over downloaded artifacts: every completed
// download is recorded, and EnforceQuota evicts oldest files until total size
// fits the quota. Ledger mutation is mutually exclusive across callers.
type IStorageManager interface {
	Record(path string, sizeBytes int64)
	Touch(path string, at time.Time)
	EnforceQuota() []string
	Remove(path string) error
	Rebuild() error
	Stats() StorageStats
}
