package collect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-github/v39/github"

	gh "github.com/reillywatson/dorastats/internal/github"
	"github.com/reillywatson/dorastats/internal/summary"
)

func pr(number int, createdDaysAgo, mergedDaysAgo int) *github.PullRequest {
	created := now.AddDate(0, 0, -createdDaysAgo)
	p := &github.PullRequest{Number: github.Int(number), CreatedAt: &created}
	if mergedDaysAgo >= 0 {
		merged := now.AddDate(0, 0, -mergedDaysAgo)
		p.MergedAt = &merged
	}
	return p
}

func issue(number, updatedDaysAgo int) *github.Issue {
	updated := now.AddDate(0, 0, -updatedDaysAgo)
	return &github.Issue{Number: github.Int(number), UpdatedAt: &updated}
}

func newSummarizer(client gh.ClientInterface) *Summarizer {
	s := NewSummarizer(client, SummaryOptions{
		Repos: []RepoSpec{{Repo: gh.Repo{Owner: "org", Name: "api"}, DisplayName: "API"}},
	}, nil)
	s.now = func() time.Time { return now }
	return s
}

func TestSummarizer_Rows(t *testing.T) {
	mock := &MockClient{
		updated: []*github.PullRequest{
			pr(1, 2, 1),
			pr(2, 10, 3),
			pr(3, 20, -1),
			pr(4, 40, 25),
		},
		issues: map[string][]*github.Issue{
			"Ready for QA": {issue(10, 50), issue(11, 1)},
			"In Review":    {issue(11, 1)},
			"QA Passed":    {issue(20, 2), issue(21, 12), issue(11, 1)},
			"Done":         {issue(20, 2), issue(22, 40)},
		},
		release: &github.RepositoryRelease{PublishedAt: ts(now.AddDate(0, 0, -4).Add(-3 * time.Hour))},
	}

	rows := newSummarizer(mock).Rows(context.Background(), []int{7, 30})

	week := rows[7][0]
	if week.RepoName != "org/api" || week.DisplayName != "API" {
		t.Errorf("Unexpected identity %s / %s", week.RepoName, week.DisplayName)
	}
	if week.PRsOpened != 1 || week.PRsMerged != 2 {
		t.Errorf("Expected 1 opened and 2 merged in 7 days, got %d and %d", week.PRsOpened, week.PRsMerged)
	}
	if week.IssuesReadyForQA != 2 {
		t.Errorf("Expected 2 issues ready for QA, got %d", week.IssuesReadyForQA)
	}
	if week.IssuesQACompleted != 1 {
		t.Errorf("Expected 1 issue QA completed in 7 days, got %d", week.IssuesQACompleted)
	}
	if week.DaysSinceLastRelease == nil || *week.DaysSinceLastRelease != 4 {
		t.Errorf("Expected 4 days since release, got %v", week.DaysSinceLastRelease)
	}

	month := rows[30][0]
	if month.PRsOpened != 3 || month.PRsMerged != 3 {
		t.Errorf("Expected 3 opened and 3 merged in 30 days, got %d and %d", month.PRsOpened, month.PRsMerged)
	}
	if month.IssuesReadyForQA != 2 || month.IssuesQACompleted != 2 {
		t.Errorf("Expected 2 ready and 2 completed in 30 days, got %d and %d", month.IssuesReadyForQA, month.IssuesQACompleted)
	}
}

func TestSummarizer_NoRelease(t *testing.T) {
	rows := newSummarizer(&MockClient{}).Rows(context.Background(), []int{30})
	if rows[30][0].DaysSinceLastRelease != nil {
		t.Errorf("Expected no release age, got %v", *rows[30][0].DaysSinceLastRelease)
	}
}

func TestSummarizer_FailedRepoGetsZeroRow(t *testing.T) {
	rows := newSummarizer(&MockClient{err: errors.New("boom")}).Rows(context.Background(), []int{7, 30})
	for _, p := range []int{7, 30} {
		if len(rows[p]) != 1 {
			t.Fatalf("Expected 1 row for %d days, got %d", p, len(rows[p]))
		}
		r := rows[p][0]
		if r.RepoName != "org/api" || r.PRsOpened != 0 || r.DaysSinceLastRelease != nil {
			t.Errorf("Expected a zero row, got %+v", r)
		}
	}
}

func TestWriteSummaries(t *testing.T) {
	days := 3
	rows := map[int][]summary.Row{
		7:  {{RepoName: "org/api", PRsOpened: 1}},
		30: {{RepoName: "org/api", PRsOpened: 5, DaysSinceLastRelease: &days}},
	}
	dir := t.TempDir()

	written, err := WriteSummaries(dir, rows)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("Expected 3 files, got %v", written)
	}

	f, err := os.Open(filepath.Join(dir, "repo_summary.csv"))
	if err != nil {
		t.Fatalf("Expected repo_summary.csv, got %v", err)
	}
	defer f.Close()
	parsed, err := summary.Parse(f)
	if err != nil {
		t.Fatalf("Expected no error parsing, got %v", err)
	}
	if len(parsed) != 1 || parsed[0].PRsOpened != 5 || *parsed[0].DaysSinceLastRelease != 3 {
		t.Errorf("Expected the 30 day rows, got %+v", parsed)
	}
}
