// Package report renders the derived metrics for a terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/reillywatson/dorastats/internal/dora"
	"github.com/reillywatson/dorastats/internal/feed"
	"github.com/reillywatson/dorastats/internal/source"
)

var (
	colorSuccess = lipgloss.Color(dora.ColorSuccess)
	colorFailure = lipgloss.Color(dora.ColorFailure)
	colorMuted   = lipgloss.Color("#6b7280")
	colorAccent  = lipgloss.Color("#3b82f6")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	goodStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	badStyle     = lipgloss.NewStyle().Foreground(colorFailure)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)

// Options controls what Render prints
type Options struct {
	Window dora.Window
	Now    time.Time
	// TopActors caps the actor table; zero prints all
	TopActors int
}

// Render writes the dashboard for b to w
func Render(w io.Writer, b *source.Bundle, opts Options) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	view := dora.Filter(b.Store, opts.Window, now)
	snap := dora.Derive(view, b.Store, now)

	sections := []string{
		titleStyle.Render(fmt.Sprintf("DORA metrics, window %s", windowLabel(opts.Window))),
		boxStyle.Render(metrics(snap)),
		breakdown(dora.StatusBreakdown(view.Deployments)),
		actors(view, opts.TopActors),
	}

	periods := make([]int, 0, len(b.Feeds))
	for p := range b.Feeds {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	for _, p := range periods {
		sections = append(sections, repos(b.Feeds[p]))
	}

	_, err := fmt.Fprintln(w, strings.Join(sections, "\n\n"))
	return err
}

func windowLabel(w dora.Window) string {
	if w == dora.AllTime {
		return "all time"
	}
	return fmt.Sprintf("last %d days", int(w))
}

func metrics(s dora.Snapshot) string {
	status := goodStyle.Render("good")
	if s.ChangeFailureStatus != dora.StatusGood {
		status = badStyle.Render("needs attention")
	}
	lines := []string{
		row("Deployment frequency", fmt.Sprintf("%.2f/day", s.DeploymentFrequency), s.FrequencyTrend, true),
		row("Lead time", fmt.Sprintf("%.1fh", s.LeadTimeHours), s.LeadTimeTrend, false),
		row("Change failure rate", fmt.Sprintf("%.1f%% (%s)", s.ChangeFailureRate, status), s.ChangeFailureRateTrend, false),
		row("Time to recovery", fmt.Sprintf("%.1fh", s.RecoveryTimeHours), s.RecoveryTimeTrend, false),
		"",
		fmt.Sprintf("%-22s %d yesterday, %d last week, %d last month", "Deployments", s.DeploymentsYesterday, s.DeploymentsLastWeek, s.DeploymentsLastMonth),
		fmt.Sprintf("%-22s %d total, %d ok, %d failed (%.0f%% success)", "", s.TotalDeployments, s.SuccessfulDeployments, s.FailedDeployments, s.SuccessRate),
		mutedStyle.Render(s.WeeklyTrend),
		mutedStyle.Render("aggregates from " + s.AggregateSource),
	}
	return strings.Join(lines, "\n")
}

// row prints a metric and its trend. For frequency a rise is good, for the
// other metrics a fall is.
func row(name, value string, trend float64, higherIsBetter bool) string {
	return fmt.Sprintf("%-22s %-28s %s", name, value, trendLabel(trend, higherIsBetter))
}

func trendLabel(trend float64, higherIsBetter bool) string {
	if trend == 0 {
		return mutedStyle.Render("→ 0%")
	}
	arrow := "↑"
	if trend < 0 {
		arrow = "↓"
	}
	text := fmt.Sprintf("%s %.0f%%", arrow, math.Abs(trend))
	if (trend > 0) == higherIsBetter {
		return goodStyle.Render(text)
	}
	return badStyle.Render(text)
}

func breakdown(counts []dora.StatusCount) string {
	total := 0
	for _, c := range counts {
		total += c.Value
	}
	lines := []string{headingStyle.Render("Deployment status")}
	if total == 0 {
		return strings.Join(append(lines, mutedStyle.Render("no deployments")), "\n")
	}
	for _, c := range counts {
		bar := strings.Repeat("█", c.Value*30/total)
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(c.Color))
		lines = append(lines, fmt.Sprintf("%-8s %4d %s", c.Name, c.Value, style.Render(bar)))
	}
	return strings.Join(lines, "\n")
}

func actors(view dora.View, top int) string {
	stats := dora.ActorPerformance(view.Deployments)
	dora.SortByDeployments(stats)
	if top > 0 && len(stats) > top {
		stats = stats[:top]
	}

	lines := []string{headingStyle.Render("Deployments by actor")}
	if len(stats) == 0 {
		return strings.Join(append(lines, mutedStyle.Render("no deployments")), "\n")
	}
	for _, a := range stats {
		rate := fmt.Sprintf("%.0f%%", a.SuccessRate)
		if a.SuccessRate >= 80 {
			rate = goodStyle.Render(rate)
		} else {
			rate = badStyle.Render(rate)
		}
		lines = append(lines, fmt.Sprintf("%-20s %4d deploys %4d ok  %s", a.Actor, a.Deployments, a.Successful, rate))
	}
	return strings.Join(lines, "\n")
}

func repos(res *feed.Result) string {
	lines := []string{
		headingStyle.Render(fmt.Sprintf("Repositories, last %d days", res.Period)),
		mutedStyle.Render(fmt.Sprintf("%-28s %8s %8s %8s %8s %8s", "repository", "opened", "merged", "qa ready", "qa done", "release")),
	}
	for _, r := range res.Rows {
		name := r.DisplayName
		if name == "" {
			name = r.RepoName
		}
		release := "-"
		if r.DaysSinceLastRelease != nil {
			release = fmt.Sprintf("%dd", *r.DaysSinceLastRelease)
		}
		lines = append(lines, fmt.Sprintf("%-28s %8d %8d %8d %8d %8s",
			name, r.PRsOpened, r.PRsMerged, r.IssuesReadyForQA, r.IssuesQACompleted, release))
	}
	t := res.Totals
	lines = append(lines, headingStyle.Render(fmt.Sprintf("%-28s %8d %8d %8d %8d",
		"total", t.PRsOpened, t.PRsMerged, t.IssuesReadyForQA, t.IssuesQACompleted)))
	return strings.Join(lines, "\n")
}
