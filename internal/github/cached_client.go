package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/go-github/v39/github"

	"github.com/reillywatson/dorastats/internal/cache"
	"github.com/reillywatson/dorastats/internal/observability"
)

// Cache lifetimes. Finished deployments and comparisons between fixed SHAs
// do not change, listings do.
const (
	listTTL     = time.Hour
	finishedTTL = 24 * time.Hour
	releaseTTL  = 6 * time.Hour
)

var (
	_ ClientInterface = (*Client)(nil)
	_ ClientInterface = (*CachedClient)(nil)
)

// CachedClient wraps a ClientInterface with caching
type CachedClient struct {
	client ClientInterface
	cache  cache.Cache
	kb     *cache.KeyBuilder
	logger *slog.Logger
}

// NewCachedClient creates a GitHub client with caching
func NewCachedClient(client ClientInterface, c cache.Cache, logger *slog.Logger) *CachedClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedClient{
		client: client,
		cache:  c,
		kb:     cache.NewKeyBuilder("github"),
		logger: logger,
	}
}

func (c *CachedClient) get(key string, value interface{}) bool {
	err := c.cache.Get(key, value)
	if err == nil {
		observability.CacheLookup("github", true)
		return true
	}
	observability.CacheLookup("github", false)
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}
	return false
}

func (c *CachedClient) set(key string, value interface{}, ttl time.Duration) {
	if err := c.cache.Set(key, value, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *CachedClient) ListDeployments(ctx context.Context, owner, repo, environment string) ([]*github.Deployment, error) {
	key := c.kb.DeploymentsKey(owner, repo, environment)
	var cached []*github.Deployment
	if c.get(key, &cached) {
		return cached, nil
	}

	deployments, err := c.client.ListDeployments(ctx, owner, repo, environment)
	if err != nil {
		return nil, err
	}
	c.set(key, deployments, listTTL)
	return deployments, nil
}

// ListDeploymentStatuses caches the statuses of finished deployments for
// longer than those still in progress
func (c *CachedClient) ListDeploymentStatuses(ctx context.Context, owner, repo string, deploymentID int64) ([]*github.DeploymentStatus, error) {
	key := c.kb.DeploymentStatusesKey(owner, repo, deploymentID)
	var cached []*github.DeploymentStatus
	if c.get(key, &cached) {
		return cached, nil
	}

	statuses, err := c.client.ListDeploymentStatuses(ctx, owner, repo, deploymentID)
	if err != nil {
		return nil, err
	}
	ttl := listTTL
	if isFinished(statuses) {
		ttl = finishedTTL
	}
	c.set(key, statuses, ttl)
	return statuses, nil
}

func (c *CachedClient) ListMergedPullRequests(ctx context.Context, owner, repo string, limit int) ([]*github.PullRequest, error) {
	key := c.kb.MergedPRsKey(owner, repo, limit)
	var cached []*github.PullRequest
	if c.get(key, &cached) {
		return cached, nil
	}

	prs, err := c.client.ListMergedPullRequests(ctx, owner, repo, limit)
	if err != nil {
		return nil, err
	}
	c.set(key, prs, listTTL)
	return prs, nil
}

func (c *CachedClient) ListPullRequestsUpdatedSince(ctx context.Context, owner, repo string, since time.Time) ([]*github.PullRequest, error) {
	key := c.kb.PRsListKey(owner, repo, since, time.Time{})
	var cached []*github.PullRequest
	if c.get(key, &cached) {
		return cached, nil
	}

	prs, err := c.client.ListPullRequestsUpdatedSince(ctx, owner, repo, since)
	if err != nil {
		return nil, err
	}
	c.set(key, prs, listTTL)
	return prs, nil
}

// CompareCommits caches comparisons indefinitely when both ends are SHAs
func (c *CachedClient) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]string, error) {
	key := c.kb.CompareKey(owner, repo, base, head)
	var cached []string
	if c.get(key, &cached) {
		return cached, nil
	}

	shas, err := c.client.CompareCommits(ctx, owner, repo, base, head)
	if err != nil {
		return nil, err
	}
	var ttl time.Duration
	if !isSHA(base) || !isSHA(head) {
		ttl = listTTL
	}
	c.set(key, shas, ttl)
	return shas, nil
}

func (c *CachedClient) ListIssues(ctx context.Context, owner, repo string, q IssueQuery) ([]*github.Issue, error) {
	key := c.kb.IssuesKey(owner, repo, q.State, q.Labels, q.Since)
	var cached []*github.Issue
	if c.get(key, &cached) {
		return cached, nil
	}

	issues, err := c.client.ListIssues(ctx, owner, repo, q)
	if err != nil {
		return nil, err
	}
	c.set(key, issues, listTTL)
	return issues, nil
}

// LatestRelease caches the absence of a release as well as a release
func (c *CachedClient) LatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, error) {
	key := c.kb.LatestReleaseKey(owner, repo)
	var cached *github.RepositoryRelease
	if c.get(key, &cached) {
		return cached, nil
	}

	release, err := c.client.LatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	c.set(key, release, releaseTTL)
	return release, nil
}

// Close cleans up the client
func (c *CachedClient) Close() error {
	return c.cache.Close()
}

func isFinished(statuses []*github.DeploymentStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	switch statuses[0].GetState() {
	case "success", "failure", "error", "inactive":
		return true
	}
	return false
}

func isSHA(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, r := range ref {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
