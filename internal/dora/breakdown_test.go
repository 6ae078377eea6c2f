package dora

import (
	"testing"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

func TestStatusBreakdown(t *testing.T) {
	got := StatusBreakdown(sampleStore().Deployments)

	if len(got) != 2 {
		t.Fatalf("Expected 2 buckets, got %d", len(got))
	}
	if got[0].Name != "Success" || got[0].Value != 4 || got[0].Color != ColorSuccess {
		t.Errorf("Unexpected success bucket: %+v", got[0])
	}
	if got[1].Name != "Failure" || got[1].Value != 2 || got[1].Color != ColorFailure {
		t.Errorf("Unexpected failure bucket: %+v", got[1])
	}

	empty := StatusBreakdown(nil)
	if empty[0].Value != 0 || empty[1].Value != 0 {
		t.Errorf("Expected empty buckets, got %+v", empty)
	}
}

func TestActorPerformance(t *testing.T) {
	stats := ActorPerformance(sampleStore().Deployments)
	if len(stats) != 4 {
		t.Fatalf("Expected 4 actors, got %d", len(stats))
	}
	if stats[0].Actor != "alice" {
		t.Errorf("Expected first-seen order, got %q first", stats[0].Actor)
	}

	SortByDeployments(stats)
	want := []struct {
		actor       string
		deployments int
		rate        float64
	}{
		{"alice", 2, 100},
		{"bob", 2, 50},
		{"carol", 1, 0},
		{"dave", 1, 100},
	}
	for i, w := range want {
		s := stats[i]
		if s.Actor != w.actor || s.Deployments != w.deployments || !approx(s.SuccessRate, w.rate) {
			t.Errorf("Position %d: expected %s/%d/%v, got %s/%d/%v",
				i, w.actor, w.deployments, w.rate, s.Actor, s.Deployments, s.SuccessRate)
		}
	}

	if got := ActorPerformance(nil); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", got)
	}
}

func TestAuthorCounts(t *testing.T) {
	prs := []snapshot.PullRequest{
		{Number: 1, Author: "bob"},
		{Number: 2, Author: "alice"},
		{Number: 3, Author: "bob"},
		{Number: 4, Author: "carol"},
	}
	got := AuthorCounts(prs)

	if len(got) != 3 {
		t.Fatalf("Expected 3 authors, got %d", len(got))
	}
	if got[0].Author != "bob" || got[0].Merged != 2 {
		t.Errorf("Expected bob with 2 merged first, got %+v", got[0])
	}
	if got[1].Author != "alice" || got[2].Author != "carol" {
		t.Errorf("Expected ties ordered by name, got %+v", got)
	}
}

func TestRollupSeries(t *testing.T) {
	v := Filter(sampleStore(), 30, now)
	points := RollupSeries(v)

	if len(points) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(points))
	}
	if points[0].Date != "2025-06-05" {
		t.Errorf("Expected oldest day first, got %s", points[0].Date)
	}
	if !approx(points[0].ChangeFailure, 50) {
		t.Errorf("Expected change failure as a percentage, got %v", points[0].ChangeFailure)
	}
	if !approx(points[1].RecoveryHours, 0.5) {
		t.Errorf("Expected recovery in hours, got %v", points[1].RecoveryHours)
	}
}
