// Package summary reads and writes the per-repository activity feed.
package summary

// SchemaVersion identifies the column layout below
const SchemaVersion = 1

// Column names of the feed, in the order Write emits them
const (
	ColRepoName             = "repo_name"
	ColDisplayName          = "display_name"
	ColPRsOpened            = "prs_opened"
	ColPRsMerged            = "prs_merged"
	ColIssuesReadyForQA     = "issues_ready_for_qa"
	ColIssuesQACompleted    = "issues_qa_completed"
	ColDaysSinceLastRelease = "days_since_last_release"
	ColFetchedAt            = "fetched_at"
)

// Columns is the fixed header of schema version 1
var Columns = []string{
	ColRepoName,
	ColDisplayName,
	ColPRsOpened,
	ColPRsMerged,
	ColIssuesReadyForQA,
	ColIssuesQACompleted,
	ColDaysSinceLastRelease,
	ColFetchedAt,
}

// Row is one repository's activity for a period
type Row struct {
	RepoName          string `json:"repoName"`
	DisplayName       string `json:"displayName"`
	PRsOpened         int    `json:"prsOpened"`
	PRsMerged         int    `json:"prsMerged"`
	IssuesReadyForQA  int    `json:"issuesReadyForQA"`
	IssuesQACompleted int    `json:"issuesQACompleted"`
	// nil when the feed has no value for it
	DaysSinceLastRelease *int   `json:"daysSinceLastRelease"`
	FetchedAt            string `json:"fetchedAt"`
}

// Totals sums the activity counters across rows
type Totals struct {
	PRsOpened         int `json:"prsOpened"`
	PRsMerged         int `json:"prsMerged"`
	IssuesReadyForQA  int `json:"issuesReadyForQA"`
	IssuesQACompleted int `json:"issuesQACompleted"`
}

// Sum totals the four counters of rows
func Sum(rows []Row) Totals {
	var t Totals
	for _, r := range rows {
		t.PRsOpened += r.PRsOpened
		t.PRsMerged += r.PRsMerged
		t.IssuesReadyForQA += r.IssuesReadyForQA
		t.IssuesQACompleted += r.IssuesQACompleted
	}
	return t
}
