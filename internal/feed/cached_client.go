package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/reillywatson/dorastats/internal/cache"
	"github.com/reillywatson/dorastats/internal/observability"
)

// DefaultTTL bounds how stale a cached feed may be
const DefaultTTL = 5 * time.Minute

// CachedClient wraps Client with caching. Failures are never cached.
type CachedClient struct {
	client *Client
	cache  cache.Cache
	kb     *cache.KeyBuilder
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient creates a feed client that caches successful fetches for ttl
func NewCachedClient(client *Client, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{
		client: client,
		cache:  c,
		kb:     cache.NewKeyBuilder("feed"),
		ttl:    ttl,
		logger: logger,
	}
}

// Fetch returns the cached feed for period, fetching it on a miss
func (c *CachedClient) Fetch(ctx context.Context, period int) (*Result, error) {
	loc, _ := c.client.Location(period)
	key := c.kb.FeedKey(period, loc)

	var cached Result
	err := c.cache.Get(key, &cached)
	if err == nil {
		observability.CacheLookup("feed", true)
		return &cached, nil
	}
	observability.CacheLookup("feed", false)
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("feed cache read failed", "key", key, "error", err)
	}

	res, err := c.client.Fetch(ctx, period)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(key, res, c.ttl); err != nil {
		c.logger.Warn("feed cache write failed", "key", key, "error", err)
	}
	return res, nil
}
