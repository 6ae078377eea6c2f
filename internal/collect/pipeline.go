package collect

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/go-github/v39/github"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

// Failure reasons recorded per deployment
const (
	ReasonNone           = "none"
	ReasonIncidentWindow = "incident_window"
	ReasonStatusFailure  = "gh_status_failure"
)

// DefaultCFRWindow is how long after a deployment finishes an incident is
// blamed on it
const DefaultCFRWindow = 120 * time.Minute

// DeploymentFromGitHub converts a deployment and its statuses (newest first,
// as the API returns them). The finish time is the first success, so a later
// inactive status does not move it, else the latest status.
func DeploymentFromGitHub(d *github.Deployment, statuses []*github.DeploymentStatus, environment string) snapshot.Deployment {
	dep := snapshot.Deployment{
		ID:          d.GetID(),
		Environment: environment,
		CreatedAt:   snapshot.At(d.GetCreatedAt().Time),
		State:       snapshot.StateUnknown,
		Actor:       d.GetCreator().GetLogin(),
		SHA:         d.GetSHA(),
		Ref:         d.GetRef(),
	}
	if dep.SHA == "" {
		dep.SHA = dep.Ref
	}
	if dep.Environment == "" {
		dep.Environment = d.GetEnvironment()
	}
	if len(statuses) == 0 {
		return dep
	}

	latest := statuses[0]
	dep.State = latest.GetState()
	dep.FinishedAt = snapshot.At(latest.GetCreatedAt().Time)
	for i := len(statuses) - 1; i >= 0; i-- {
		if statuses[i].GetState() == snapshot.StateSuccess {
			dep.FinishedAt = snapshot.At(statuses[i].GetCreatedAt().Time)
			break
		}
	}
	return dep
}

// PullRequestFromGitHub converts a merged pull request
func PullRequestFromGitHub(pr *github.PullRequest) snapshot.PullRequest {
	return snapshot.PullRequest{
		Number:   pr.GetNumber(),
		MergedAt: snapshot.At(pr.GetMergedAt()),
		MergeSHA: pr.GetMergeCommitSHA(),
		Author:   pr.GetUser().GetLogin(),
	}
}

// IncidentFromIssue converts a closed incident issue. An issue that is still
// open has no duration.
func IncidentFromIssue(issue *github.Issue) snapshot.Incident {
	inc := snapshot.Incident{
		ID:        strconv.Itoa(issue.GetNumber()),
		Title:     issue.GetTitle(),
		CreatedAt: snapshot.At(issue.GetCreatedAt()),
		ClosedAt:  snapshot.At(issue.GetClosedAt()),
	}
	if !inc.CreatedAt.IsZero() && !inc.ClosedAt.IsZero() && inc.ClosedAt.After(inc.CreatedAt.Time) {
		inc.DurationMinutes = inc.ClosedAt.Sub(inc.CreatedAt.Time).Minutes()
	}
	return inc
}

// DeployWindow spans two successive finished deployments. Commits in
// PrevSHA...CurrSHA first reached the environment at DeployedAt.
type DeployWindow struct {
	ID         int                `json:"window_id"`
	PrevSHA    string             `json:"prev_sha"`
	CurrSHA    string             `json:"curr_sha"`
	DeployedAt snapshot.Timestamp `json:"deployed_at_utc"`
}

// PRLeadTime is the merge-to-deploy time of one pull request. Unmapped pull
// requests have a zero FirstDeployedAt and lead time.
type PRLeadTime struct {
	PRNumber        int                `json:"pr_number"`
	FirstDeployedAt snapshot.Timestamp `json:"first_deployed_at_utc"`
	LeadTimeHours   float64            `json:"lt_hours"`
	WindowPrevSHA   string             `json:"window_prev_sha,omitempty"`
	WindowCurrSHA   string             `json:"window_curr_sha,omitempty"`
}

// Mapped reports whether the pull request was found in a deploy window
func (l PRLeadTime) Mapped() bool {
	return !l.FirstDeployedAt.IsZero()
}

// DeployFailure is the change-failure classification of one deployment
type DeployFailure struct {
	DeploymentID int64  `json:"deployment_id"`
	Failed       int    `json:"failed"`
	Reason       string `json:"reason"`
}

func finished(deployments []snapshot.Deployment) []snapshot.Deployment {
	var out []snapshot.Deployment
	for _, d := range deployments {
		if !d.FinishedAt.IsZero() {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinishedAt.Before(out[j].FinishedAt.Time)
	})
	return out
}

// BuildWindows pairs successive finished deployments, oldest first. Fewer
// than two finished deployments yield no windows.
func BuildWindows(deployments []snapshot.Deployment) []DeployWindow {
	done := finished(deployments)
	if len(done) < 2 {
		return []DeployWindow{}
	}
	windows := make([]DeployWindow, 0, len(done)-1)
	for i := 1; i < len(done); i++ {
		windows = append(windows, DeployWindow{
			ID:         i,
			PrevSHA:    done[i-1].SHA,
			CurrSHA:    done[i].SHA,
			DeployedAt: done[i].FinishedAt,
		})
	}
	return windows
}

// MapLeadTimes finds, for every pull request with a merge SHA, the first
// window whose commits contain that SHA. commits is indexed like windows.
func MapLeadTimes(prs []snapshot.PullRequest, windows []DeployWindow, commits [][]string) []PRLeadTime {
	sets := make([]map[string]bool, len(windows))
	for i := range windows {
		sets[i] = map[string]bool{}
		if i < len(commits) {
			for _, sha := range commits[i] {
				sets[i][sha] = true
			}
		}
	}

	out := []PRLeadTime{}
	for _, pr := range prs {
		if pr.MergeSHA == "" || pr.MergedAt.IsZero() {
			continue
		}
		lt := PRLeadTime{PRNumber: pr.Number}
		for i, w := range windows {
			if sets[i][pr.MergeSHA] {
				lt.FirstDeployedAt = w.DeployedAt
				lt.WindowPrevSHA = w.PrevSHA
				lt.WindowCurrSHA = w.CurrSHA
				lt.LeadTimeHours = round2(w.DeployedAt.Sub(pr.MergedAt.Time).Hours())
				break
			}
		}
		out = append(out, lt)
	}
	return out
}

// ClassifyFailures classifies every finished deployment. An incident opened
// in [finished, finished+window] fails it; otherwise a failure or error state
// does. A zero window disables the incident check.
func ClassifyFailures(deployments []snapshot.Deployment, incidents []snapshot.Incident, window time.Duration) []DeployFailure {
	out := []DeployFailure{}
	for _, d := range deployments {
		if d.FinishedAt.IsZero() {
			continue
		}
		f := DeployFailure{DeploymentID: d.ID, Reason: ReasonNone}
		switch {
		case window > 0 && incidentWithin(incidents, d.FinishedAt.Time, d.FinishedAt.Add(window)):
			f.Failed = 1
			f.Reason = ReasonIncidentWindow
		case d.Failed():
			f.Failed = 1
			f.Reason = ReasonStatusFailure
		}
		out = append(out, f)
	}
	return out
}

func incidentWithin(incidents []snapshot.Incident, start, end time.Time) bool {
	for _, inc := range incidents {
		if inc.CreatedAt.IsZero() {
			continue
		}
		if !inc.CreatedAt.Before(start) && !inc.CreatedAt.After(end) {
			return true
		}
	}
	return false
}

// DailyRollups aggregates per UTC day: deployments and failures by finish
// day, mean mapped lead time by merge day, incident minutes by creation day.
// Days are returned oldest first.
func DailyRollups(deployments []snapshot.Deployment, failures []DeployFailure, prs []snapshot.PullRequest, leadTimes []PRLeadTime, incidents []snapshot.Incident) []snapshot.DailyRollup {
	type acc struct {
		deploys, failed int
		ltSum           float64
		ltCount         int
		mttr            float64
	}
	days := map[string]*acc{}
	get := func(ts snapshot.Timestamp) *acc {
		key := ts.DateString()
		if days[key] == nil {
			days[key] = &acc{}
		}
		return days[key]
	}

	failed := map[int64]bool{}
	for _, f := range failures {
		if f.Failed == 1 {
			failed[f.DeploymentID] = true
		}
	}
	for _, d := range deployments {
		if d.FinishedAt.IsZero() {
			continue
		}
		a := get(d.FinishedAt)
		a.deploys++
		if failed[d.ID] {
			a.failed++
		}
	}

	mergedAt := map[int]snapshot.Timestamp{}
	for _, pr := range prs {
		mergedAt[pr.Number] = pr.MergedAt
	}
	for _, lt := range leadTimes {
		merged, ok := mergedAt[lt.PRNumber]
		if !ok || merged.IsZero() || !lt.Mapped() {
			continue
		}
		a := get(merged)
		a.ltSum += lt.LeadTimeHours
		a.ltCount++
	}

	for _, inc := range incidents {
		if inc.CreatedAt.IsZero() {
			continue
		}
		get(inc.CreatedAt).mttr += inc.DurationMinutes
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rollups := make([]snapshot.DailyRollup, 0, len(keys))
	for _, k := range keys {
		a := days[k]
		day, _ := time.Parse("2006-01-02", k)
		r := snapshot.DailyRollup{
			Date:          snapshot.DateOf(day),
			Deploys:       a.deploys,
			FailedDeploys: a.failed,
			MTTRMinutes:   a.mttr,
		}
		if a.deploys > 0 {
			r.ChangeFailureRate = float64(a.failed) / float64(a.deploys)
		}
		if a.ltCount > 0 {
			r.AvgLeadTimeHours = round2(a.ltSum / float64(a.ltCount))
		}
		rollups = append(rollups, r)
	}
	return rollups
}

// Events builds the unified event stream: finished deployments, then merges,
// then incidents. IDs are assigned in that order starting at 1.
func Events(deployments []snapshot.Deployment, prs []snapshot.PullRequest, incidents []snapshot.Incident) []snapshot.Event {
	events := []snapshot.Event{}
	add := func(e snapshot.Event) {
		e.ID = int64(len(events) + 1)
		events = append(events, e)
	}
	for _, d := range deployments {
		if d.FinishedAt.IsZero() {
			continue
		}
		add(snapshot.Event{Type: snapshot.EventDeployment, When: d.FinishedAt, SHA: d.SHA, DeploymentID: d.ID, State: d.State})
	}
	for _, pr := range prs {
		add(snapshot.Event{Type: snapshot.EventPRMerge, When: pr.MergedAt, SHA: pr.MergeSHA, PRNumber: pr.Number})
	}
	for _, inc := range incidents {
		add(snapshot.Event{Type: snapshot.EventIncident, When: inc.CreatedAt, IncidentID: inc.ID, Title: inc.Title})
	}
	return events
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func windowLabel(w DeployWindow) string {
	return fmt.Sprintf("%s...%s", short(w.PrevSHA), short(w.CurrSHA))
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
