package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v39/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// maxPages caps every paginated listing
const maxPages = 10

// ClientInterface defines the GitHub operations the collector needs
type ClientInterface interface {
	ListDeployments(ctx context.Context, owner, repo, environment string) ([]*github.Deployment, error)
	ListDeploymentStatuses(ctx context.Context, owner, repo string, deploymentID int64) ([]*github.DeploymentStatus, error)
	ListMergedPullRequests(ctx context.Context, owner, repo string, limit int) ([]*github.PullRequest, error)
	ListPullRequestsUpdatedSince(ctx context.Context, owner, repo string, since time.Time) ([]*github.PullRequest, error)
	CompareCommits(ctx context.Context, owner, repo, base, head string) ([]string, error)
	ListIssues(ctx context.Context, owner, repo string, opts IssueQuery) ([]*github.Issue, error)
	LatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, error)
}

// Options configures a Client. An empty BaseURL targets api.github.com and a
// zero RequestsPerSecond leaves calls unpaced.
type Options struct {
	Token             string
	BaseURL           string
	RequestsPerSecond float64
}

type Client struct {
	client  *github.Client
	limiter *rate.Limiter
}

func NewClient(opts Options) (*Client, error) {
	var hc *http.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	gh := github.NewClient(hc)

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{client: gh, limiter: limiter}, nil
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// ListDeployments returns the deployments to environment, newest first
func (c *Client) ListDeployments(ctx context.Context, owner, repo, environment string) ([]*github.Deployment, error) {
	var all []*github.Deployment
	opts := &github.DeploymentsListOptions{
		Environment: environment,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		deployments, resp, err := c.client.Repositories.ListDeployments(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch deployments: %w", err)
		}
		all = append(all, deployments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListDeploymentStatuses returns the statuses of a deployment, newest first
func (c *Client) ListDeploymentStatuses(ctx context.Context, owner, repo string, deploymentID int64) ([]*github.DeploymentStatus, error) {
	var all []*github.DeploymentStatus
	opts := &github.ListOptions{PerPage: 100}

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		statuses, resp, err := c.client.Repositories.ListDeploymentStatuses(ctx, owner, repo, deploymentID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch statuses of deployment %d: %w", deploymentID, err)
		}
		all = append(all, statuses...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// ListMergedPullRequests returns up to limit merged pull requests, most
// recently merged first
func (c *Client) ListMergedPullRequests(ctx context.Context, owner, repo string, limit int) ([]*github.PullRequest, error) {
	var merged []*github.PullRequest
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		prs, resp, err := c.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pull requests: %w", err)
		}
		for _, pr := range prs {
			if pr.MergedAt != nil {
				merged = append(merged, pr)
			}
		}

		if resp.NextPage == 0 || (limit > 0 && len(merged) >= limit) {
			break
		}
		opts.Page = resp.NextPage
	}

	SortByMergedAt(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// ListPullRequestsUpdatedSince returns pull requests in any state updated at
// or after since. Anything created or merged since then is included.
func (c *Client) ListPullRequestsUpdatedSince(ctx context.Context, owner, repo string, since time.Time) ([]*github.PullRequest, error) {
	var all []*github.PullRequest
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		prs, resp, err := c.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pull requests: %w", err)
		}

		done := false
		for _, pr := range prs {
			if pr.GetUpdatedAt().Before(since) {
				done = true
				break
			}
			all = append(all, pr)
		}

		if done || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// CompareCommits returns the SHAs of the commits in base...head, oldest first
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]string, error) {
	var shas []string
	opts := &github.ListOptions{PerPage: 100}

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		cmp, resp, err := c.client.Repositories.CompareCommits(ctx, owner, repo, base, head, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to compare %s...%s: %w", base, head, err)
		}
		for _, commit := range cmp.Commits {
			if sha := commit.GetSHA(); sha != "" {
				shas = append(shas, sha)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return shas, nil
}

// IssueQuery selects issues. Labels must all be present on an issue.
type IssueQuery struct {
	State  string
	Labels []string
	Since  time.Time
}

// ListIssues returns issues matching q. Pull requests, which the issues
// endpoint also returns, are dropped.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, q IssueQuery) ([]*github.Issue, error) {
	var issues []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State:       q.State,
		Labels:      q.Labels,
		Since:       q.Since,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for page := 0; page < maxPages; page++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		batch, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch issues: %w", err)
		}
		for _, issue := range batch {
			if !issue.IsPullRequest() {
				issues = append(issues, issue)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return issues, nil
}

// LatestRelease returns the latest published release, or nil when the
// repository has none
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*github.RepositoryRelease, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	release, _, err := c.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}
	return release, nil
}
