// Package collect builds the dora.json snapshot and the repository summary
// feed from the GitHub API.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	gh "github.com/reillywatson/dorastats/internal/github"
	"github.com/reillywatson/dorastats/internal/snapshot"
)

// concurrency bounds the in-flight GitHub calls of one fan-out
const concurrency = 4

// DeploymentSource supplies deployments recorded outside GitHub
type DeploymentSource interface {
	Deployments(ctx context.Context, since time.Time) ([]snapshot.Deployment, error)
}

// Options configures a collection run
type Options struct {
	Repo          gh.Repo
	Environment   string
	IncidentLabel string
	// Lookback drops records older than this many days; zero keeps everything
	Lookback    int
	PRLimit     int
	DeployLimit int
	// CFRWindow blames incidents opened this long after a deployment on it;
	// zero leaves failures to the deployment state alone
	CFRWindow time.Duration
}

type Collector struct {
	client gh.ClientInterface
	extra  DeploymentSource
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New creates a collector. extra may be nil.
func New(client gh.ClientInterface, extra DeploymentSource, opts Options, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client: client,
		extra:  extra,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Collector) since() time.Time {
	if c.opts.Lookback <= 0 {
		return time.Time{}
	}
	return c.now().AddDate(0, 0, -c.opts.Lookback)
}

// Run fetches every source and derives the export. Deployments, pull
// requests and incidents are fetched concurrently; a failure of any of them
// fails the run.
func (c *Collector) Run(ctx context.Context) (*Export, error) {
	runID := uuid.NewString()
	log := c.logger.With("run_id", runID, "repo", c.opts.Repo.String())
	since := c.since()

	var (
		deployments []snapshot.Deployment
		prs         []snapshot.PullRequest
		incidents   []snapshot.Incident
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		deployments, err = c.deployments(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		prs, err = c.pullRequests(gctx, since)
		return err
	})
	g.Go(func() error {
		var err error
		incidents, err = c.incidents(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("ingested", "deployments", len(deployments), "pull_requests", len(prs), "incidents", len(incidents))

	windows := BuildWindows(deployments)
	if len(windows) == 0 {
		log.Warn("not enough finished deployments to form windows")
	}
	commits := c.compareWindows(ctx, log, windows)
	leadTimes := MapLeadTimes(prs, windows, commits)
	failures := ClassifyFailures(deployments, incidents, c.opts.CFRWindow)

	mapped := 0
	for _, lt := range leadTimes {
		if lt.Mapped() {
			mapped++
		}
	}
	log.Info("derived", "windows", len(windows), "mapped_pull_requests", mapped)

	store := &snapshot.Store{
		Deployments:  deployments,
		PullRequests: prs,
		Incidents:    incidents,
		Rollups:      DailyRollups(deployments, failures, prs, leadTimes, incidents),
		Events:       Events(deployments, prs, incidents),
	}
	store.Normalize()

	return &Export{
		Store:       store,
		Windows:     windows,
		LeadTimes:   leadTimes,
		Failures:    failures,
		RunID:       runID,
		GeneratedAt: snapshot.At(c.now()),
	}, nil
}

func (c *Collector) deployments(ctx context.Context, since time.Time) ([]snapshot.Deployment, error) {
	owner, repo := c.opts.Repo.Owner, c.opts.Repo.Name
	raw, err := c.client.ListDeployments(ctx, owner, repo, c.opts.Environment)
	if err != nil {
		return nil, err
	}
	if c.opts.DeployLimit > 0 && len(raw) > c.opts.DeployLimit {
		raw = raw[:c.opts.DeployLimit]
	}

	out := make([]snapshot.Deployment, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, d := range raw {
		i, d := i, d
		g.Go(func() error {
			statuses, err := c.client.ListDeploymentStatuses(gctx, owner, repo, d.GetID())
			if err != nil {
				return err
			}
			out[i] = DeploymentFromGitHub(d, statuses, c.opts.Environment)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.extra != nil {
		more, err := c.extra.Deployments(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch external deployments: %w", err)
		}
		out = append(out, more...)
	}

	kept := out[:0]
	for _, d := range out {
		if since.IsZero() || !d.CreatedAt.Before(since) {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

func (c *Collector) pullRequests(ctx context.Context, since time.Time) ([]snapshot.PullRequest, error) {
	raw, err := c.client.ListMergedPullRequests(ctx, c.opts.Repo.Owner, c.opts.Repo.Name, c.opts.PRLimit)
	if err != nil {
		return nil, err
	}
	out := []snapshot.PullRequest{}
	for _, pr := range raw {
		p := PullRequestFromGitHub(pr)
		if since.IsZero() || !p.MergedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Collector) incidents(ctx context.Context, since time.Time) ([]snapshot.Incident, error) {
	if c.opts.IncidentLabel == "" {
		return []snapshot.Incident{}, nil
	}
	raw, err := c.client.ListIssues(ctx, c.opts.Repo.Owner, c.opts.Repo.Name, gh.IssueQuery{
		State:  "closed",
		Labels: []string{c.opts.IncidentLabel},
		Since:  since,
	})
	if err != nil {
		return nil, err
	}
	out := []snapshot.Incident{}
	for _, issue := range raw {
		inc := IncidentFromIssue(issue)
		if since.IsZero() || !inc.CreatedAt.Before(since) {
			out = append(out, inc)
		}
	}
	return out, nil
}

// compareWindows lists the commits of every window. A failed comparison is
// logged and leaves that window empty.
func (c *Collector) compareWindows(ctx context.Context, log *slog.Logger, windows []DeployWindow) [][]string {
	commits := make([][]string, len(windows))
	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, w := range windows {
		i, w := i, w
		g.Go(func() error {
			shas, err := c.client.CompareCommits(gctx, c.opts.Repo.Owner, c.opts.Repo.Name, w.PrevSHA, w.CurrSHA)
			if err != nil {
				log.Warn("compare failed", "window", windowLabel(w), "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			commits[i] = shas
			return nil
		})
	}
	_ = g.Wait()
	if failed > 0 {
		log.Warn("some windows could not be compared", "failed", failed, "windows", len(windows))
	}
	return commits
}
