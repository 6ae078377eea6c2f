package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common cache errors
var (
	ErrCacheMiss = errors.New("cache miss")
)

// Backends understood by New
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Cache defines the interface for all cache implementations
type Cache interface {
	// Get decodes the value stored under key into value, or returns ErrCacheMiss
	Get(key string, value interface{}) error

	// Set stores a value; a zero ttl never expires
	Set(key string, value interface{}, ttl time.Duration) error

	Delete(key string) error

	Close() error
}

// Entry is the stored envelope around a cached value
type Entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func newEntry(value interface{}, ttl time.Duration) (Entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal value: %w", err)
	}
	entry := Entry{Data: data, CreatedAt: time.Now()}
	if ttl > 0 {
		expiresAt := entry.CreatedAt.Add(ttl)
		entry.ExpiresAt = &expiresAt
	}
	return entry, nil
}

// IsExpired checks if the cache entry has expired
func (e *Entry) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

// KeyBuilder builds namespaced cache keys for the collector's API calls
type KeyBuilder struct {
	prefix string
}

func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix}
}

func (b *KeyBuilder) DeploymentsKey(owner, repo, environment string) string {
	return b.buildKey("deployments", owner, repo, environment)
}

func (b *KeyBuilder) DeploymentStatusesKey(owner, repo string, deploymentID int64) string {
	return b.buildKey("deployment_statuses", owner, repo, deploymentID)
}

func (b *KeyBuilder) MergedPRsKey(owner, repo string, limit int) string {
	return b.buildKey("merged_prs", owner, repo, limit)
}

func (b *KeyBuilder) PRsListKey(owner, repo string, startDate, endDate time.Time) string {
	return b.buildKey("prs_list", owner, repo, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
}

func (b *KeyBuilder) IssuesKey(owner, repo, state string, labels []string, since time.Time) string {
	day := ""
	if !since.IsZero() {
		day = since.Format("2006-01-02")
	}
	return b.buildKey("issues", owner, repo, state, strings.Join(labels, ","), day)
}

func (b *KeyBuilder) CompareKey(owner, repo, base, head string) string {
	return b.buildKey("compare", owner, repo, base, head)
}

func (b *KeyBuilder) LatestReleaseKey(owner, repo string) string {
	return b.buildKey("latest_release", owner, repo)
}

func (b *KeyBuilder) RolloutsKey(projectID, region, releaseName string) string {
	return b.buildKey("rollouts", projectID, region, releaseName)
}

func (b *KeyBuilder) FeedKey(period int, location string) string {
	return b.buildKey("feed", period, location)
}

func (b *KeyBuilder) buildKey(parts ...interface{}) string {
	key := b.prefix
	for _, part := range parts {
		key += ":" + toString(part)
	}
	return key
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// New opens the named backend rooted at dir. An empty dir selects the OS
// cache directory for the file backend.
func New(backend, dir string) (Cache, error) {
	switch backend {
	case "", BackendFile:
		if dir == "" {
			return NewFileCache("dorastats")
		}
		return NewFileCacheWithDir(dir)
	case BackendBadger:
		return NewBadgerCache(BadgerConfig{Path: dir})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
