package cache

import (
	"errors"
	"testing"
	"time"
)

type cachedRelease struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

func backends(t *testing.T) map[string]Cache {
	t.Helper()

	fileCache, err := NewFileCacheWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error creating file cache, got %v", err)
	}
	badgerCache, err := NewBadgerCache(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Expected no error creating badger cache, got %v", err)
	}
	t.Cleanup(func() { badgerCache.Close() })

	return map[string]Cache{"file": fileCache, "badger": badgerCache}
}

func TestCache_SetGetDelete(t *testing.T) {
	for name, c := range backends(t) {
		key := NewKeyBuilder("github").LatestReleaseKey("org", "api")

		var miss cachedRelease
		if err := c.Get(key, &miss); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("%s: expected cache miss, got %v", name, err)
		}

		want := cachedRelease{Tag: "v1.2.0", Count: 3}
		if err := c.Set(key, want, time.Hour); err != nil {
			t.Fatalf("%s: expected no error on set, got %v", name, err)
		}
		var got cachedRelease
		if err := c.Get(key, &got); err != nil {
			t.Fatalf("%s: expected no error on get, got %v", name, err)
		}
		if got != want {
			t.Errorf("%s: expected %+v, got %+v", name, want, got)
		}

		if err := c.Delete(key); err != nil {
			t.Fatalf("%s: expected no error on delete, got %v", name, err)
		}
		if err := c.Get(key, &got); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("%s: expected cache miss after delete, got %v", name, err)
		}
	}
}

func TestFileCache_ExpiredEntryIsMiss(t *testing.T) {
	c, err := NewFileCacheWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := c.Set("k", 1, time.Nanosecond); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var v int
	if err := c.Get("k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected cache miss for expired entry, got %v", err)
	}
}

func TestKeyBuilder(t *testing.T) {
	kb := NewKeyBuilder("github")

	if got := kb.DeploymentStatusesKey("org", "api", 42); got != "github:deployment_statuses:org:api:42" {
		t.Errorf("Unexpected key %q", got)
	}
	since := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	if got := kb.IssuesKey("org", "api", "open", []string{"qa", "ready"}, since); got != "github:issues:org:api:open:qa,ready:2025-06-01" {
		t.Errorf("Unexpected key %q", got)
	}
	if kb.CompareKey("o", "r", "a", "b") == kb.CompareKey("o", "r", "b", "a") {
		t.Error("Expected compare keys to depend on direction")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New("redis", t.TempDir()); err == nil {
		t.Error("Expected error for unknown backend, got none")
	}
}
