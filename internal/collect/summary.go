package collect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/go-github/v39/github"

	gh "github.com/reillywatson/dorastats/internal/github"
	"github.com/reillywatson/dorastats/internal/summary"
)

// Default QA labels. They stand in for the QA columns of a project board:
// an issue's labels play the role of its board status, and its update time
// the role of the status change time. An issue carrying a ready label counts
// as ready even when it also carries a completed one.
var (
	DefaultQAReadyLabels     = []string{"Ready for QA", "Deployed awaiting QA", "In Review"}
	DefaultQACompletedLabels = []string{"QA'd", "QA Passed", "Done"}
)

// DefaultPeriod is the period also written to repo_summary.csv
const DefaultPeriod = 30

// RepoSpec is a repository tracked by the summary
type RepoSpec struct {
	Repo        gh.Repo
	DisplayName string
}

type SummaryOptions struct {
	Repos             []RepoSpec
	QAReadyLabels     []string
	QACompletedLabels []string
}

// Summarizer computes per-repository activity rows
type Summarizer struct {
	client gh.ClientInterface
	opts   SummaryOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewSummarizer(client gh.ClientInterface, opts SummaryOptions, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QAReadyLabels == nil {
		opts.QAReadyLabels = DefaultQAReadyLabels
	}
	if opts.QACompletedLabels == nil {
		opts.QACompletedLabels = DefaultQACompletedLabels
	}
	return &Summarizer{
		client: client,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// activity is everything fetched for one repository, covering the longest
// period
type activity struct {
	prs       []*github.PullRequest
	ready     int
	completed []*github.Issue
	release   *github.RepositoryRelease
}

// Rows returns the summary rows of every period, keyed by period. A
// repository that cannot be fetched gets a zero row and an error log.
func (s *Summarizer) Rows(ctx context.Context, periods []int) map[int][]summary.Row {
	now := s.now()
	longest := 0
	for _, p := range periods {
		if p > longest {
			longest = p
		}
	}
	fetchedAt := now.Format(time.RFC3339)

	out := map[int][]summary.Row{}
	for _, spec := range s.opts.Repos {
		act, err := s.fetch(ctx, spec.Repo, now.AddDate(0, 0, -longest))
		for _, p := range periods {
			row := summary.Row{RepoName: spec.Repo.String(), DisplayName: spec.DisplayName, FetchedAt: fetchedAt}
			if err == nil {
				fillRow(&row, act, now.AddDate(0, 0, -p), now)
			}
			out[p] = append(out[p], row)
		}
		if err != nil {
			s.logger.Error("failed to fetch repository activity", "repo", spec.Repo.String(), "error", err)
			continue
		}
		s.logger.Info("fetched repository activity", "repo", spec.Repo.String(), "pull_requests", len(act.prs), "ready_for_qa", act.ready)
	}
	return out
}

func (s *Summarizer) fetch(ctx context.Context, repo gh.Repo, since time.Time) (*activity, error) {
	prs, err := s.client.ListPullRequestsUpdatedSince(ctx, repo.Owner, repo.Name, since)
	if err != nil {
		return nil, err
	}

	ready := map[int]bool{}
	for _, label := range s.opts.QAReadyLabels {
		issues, err := s.client.ListIssues(ctx, repo.Owner, repo.Name, gh.IssueQuery{State: "open", Labels: []string{label}})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %q issues: %w", label, err)
		}
		for _, issue := range issues {
			ready[issue.GetNumber()] = true
		}
	}

	seen := map[int]bool{}
	var completed []*github.Issue
	for _, label := range s.opts.QACompletedLabels {
		issues, err := s.client.ListIssues(ctx, repo.Owner, repo.Name, gh.IssueQuery{State: "all", Labels: []string{label}, Since: since})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %q issues: %w", label, err)
		}
		for _, issue := range issues {
			n := issue.GetNumber()
			if ready[n] || seen[n] {
				continue
			}
			seen[n] = true
			completed = append(completed, issue)
		}
	}

	release, err := s.client.LatestRelease(ctx, repo.Owner, repo.Name)
	if err != nil {
		return nil, err
	}
	return &activity{prs: prs, ready: len(ready), completed: completed, release: release}, nil
}

func fillRow(row *summary.Row, act *activity, cutoff, now time.Time) {
	for _, pr := range act.prs {
		if !pr.GetCreatedAt().Before(cutoff) {
			row.PRsOpened++
		}
		if pr.MergedAt != nil && !pr.GetMergedAt().Before(cutoff) {
			row.PRsMerged++
		}
	}
	row.IssuesReadyForQA = act.ready
	for _, issue := range act.completed {
		if !issue.GetUpdatedAt().Before(cutoff) {
			row.IssuesQACompleted++
		}
	}
	if act.release != nil && act.release.PublishedAt != nil {
		days := int(now.Sub(act.release.GetPublishedAt().Time).Hours() / 24)
		if days < 0 {
			days = 0
		}
		row.DaysSinceLastRelease = &days
	}
}

// SummaryFile is the feed file name for period
func SummaryFile(period int) string {
	return fmt.Sprintf("repo_summary_%dd.csv", period)
}

// WriteSummaries writes one CSV per period into dir, plus repo_summary.csv
// holding the DefaultPeriod rows when present
func WriteSummaries(dir string, rows map[int][]summary.Row) ([]string, error) {
	periods := make([]int, 0, len(rows))
	for p := range rows {
		periods = append(periods, p)
	}
	sort.Ints(periods)

	var written []string
	write := func(name string, r []summary.Row) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := summary.Write(f, r); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	for _, p := range periods {
		if err := write(SummaryFile(p), rows[p]); err != nil {
			return written, err
		}
	}
	if r, ok := rows[DefaultPeriod]; ok {
		if err := write("repo_summary.csv", r); err != nil {
			return written, err
		}
	}
	return written, nil
}
