package dora

import (
	"sort"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

// Display colors for the status breakdown
const (
	ColorSuccess = "#10b981"
	ColorFailure = "#ef4444"
)

// StatusCount is one bucket of the status breakdown
type StatusCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// StatusBreakdown groups deployments into a success and a failure bucket.
// Deployments in neither state are not counted.
func StatusBreakdown(deployments []snapshot.Deployment) []StatusCount {
	c := Classify(deployments)
	return []StatusCount{
		{Name: "Success", Value: c.Successful, Color: ColorSuccess},
		{Name: "Failure", Value: c.Failed, Color: ColorFailure},
	}
}

// ActorStats summarizes the deployments triggered by one actor
type ActorStats struct {
	Actor       string  `json:"actor"`
	Deployments int     `json:"deployments"`
	Successful  int     `json:"successful"`
	SuccessRate float64 `json:"successRate"`
}

// ActorPerformance groups deployments by actor. The result is in first-seen
// order; use SortByDeployments for display order.
func ActorPerformance(deployments []snapshot.Deployment) []ActorStats {
	index := make(map[string]int)
	var out []ActorStats
	for _, d := range deployments {
		i, ok := index[d.Actor]
		if !ok {
			i = len(out)
			index[d.Actor] = i
			out = append(out, ActorStats{Actor: d.Actor})
		}
		out[i].Deployments++
		if d.Succeeded() {
			out[i].Successful++
		}
	}
	for i := range out {
		out[i].SuccessRate = percent(out[i].Successful, out[i].Deployments)
	}
	if out == nil {
		out = []ActorStats{}
	}
	return out
}

// SortByDeployments orders stats by deployment count, most first, breaking
// ties by actor name
func SortByDeployments(stats []ActorStats) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Deployments != stats[j].Deployments {
			return stats[i].Deployments > stats[j].Deployments
		}
		return stats[i].Actor < stats[j].Actor
	})
}

// AuthorStats is the merged PR count of one author
type AuthorStats struct {
	Author string `json:"author"`
	Merged int    `json:"merged"`
}

// AuthorCounts groups merged pull requests by author, most merged first
func AuthorCounts(prs []snapshot.PullRequest) []AuthorStats {
	counts := make(map[string]int)
	for _, pr := range prs {
		counts[pr.Author]++
	}
	out := make([]AuthorStats, 0, len(counts))
	for author, n := range counts {
		out = append(out, AuthorStats{Author: author, Merged: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Merged != out[j].Merged {
			return out[i].Merged > out[j].Merged
		}
		return out[i].Author < out[j].Author
	})
	return out
}
