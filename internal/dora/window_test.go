package dora

import (
	"testing"
	"time"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n float64) snapshot.Timestamp {
	return snapshot.At(now.Add(-time.Duration(n * float64(day))))
}

func rollup(daysBack int, deploys int, cfr, lt, mttr float64) snapshot.DailyRollup {
	return snapshot.DailyRollup{
		Date:              snapshot.DateOf(now.AddDate(0, 0, -daysBack)),
		Deploys:           deploys,
		ChangeFailureRate: cfr,
		AvgLeadTimeHours:  lt,
		MTTRMinutes:       mttr,
	}
}

func sampleStore() *snapshot.Store {
	s := snapshot.Empty()
	s.Deployments = []snapshot.Deployment{
		{ID: 1, CreatedAt: daysAgo(0.5), State: snapshot.StateSuccess, Actor: "alice"},
		{ID: 2, CreatedAt: daysAgo(3), State: snapshot.StateFailure, Actor: "bob"},
		{ID: 3, CreatedAt: daysAgo(20), State: snapshot.StateInactive, Actor: "alice"},
		{ID: 4, CreatedAt: daysAgo(60), State: snapshot.StateError, Actor: "carol"},
		{ID: 5, CreatedAt: daysAgo(200), State: snapshot.StateSuccess, Actor: "bob"},
		{ID: 6, State: snapshot.StateSuccess, Actor: "dave"},
	}
	s.PullRequests = []snapshot.PullRequest{
		{Number: 1, MergedAt: daysAgo(1), Author: "alice"},
		{Number: 2, MergedAt: daysAgo(45), Author: "bob"},
	}
	s.Incidents = []snapshot.Incident{
		{ID: "1", CreatedAt: daysAgo(2), DurationMinutes: 90},
		{ID: "2", CreatedAt: daysAgo(100), DurationMinutes: 30},
	}
	s.Events = []snapshot.Event{
		{ID: 1, Type: snapshot.EventDeployment, When: daysAgo(0.5)},
		{ID: 2, Type: snapshot.EventIncident, When: daysAgo(40)},
	}
	// newest first, the order the pipeline writes them
	s.Rollups = []snapshot.DailyRollup{
		rollup(1, 3, 0, 2, 0),
		rollup(5, 1, 1, 4, 30),
		rollup(10, 2, 0.5, 6, 0),
		rollup(80, 4, 0, 1, 0),
	}
	return s
}

func TestParseWindow(t *testing.T) {
	cases := map[string]Window{
		"":    DefaultWindow,
		"7":   7,
		"30":  30,
		"90":  90,
		"all": AllTime,
		"ALL": AllTime,
	}
	for in, want := range cases {
		got, err := ParseWindow(in)
		if err != nil {
			t.Errorf("ParseWindow(%q): expected no error, got %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseWindow(%q): expected %v, got %v", in, want, got)
		}
	}

	for _, in := range []string{"14", "abc", "-7", "0"} {
		if _, err := ParseWindow(in); err == nil {
			t.Errorf("ParseWindow(%q): expected error, got none", in)
		}
	}
}

func TestFilter_AllTimeReturnsEverything(t *testing.T) {
	s := sampleStore()
	v := Filter(s, AllTime, now)

	if len(v.Deployments) != len(s.Deployments) {
		t.Errorf("Expected %d deployments, got %d", len(s.Deployments), len(v.Deployments))
	}
	if len(v.PullRequests) != len(s.PullRequests) || len(v.Incidents) != len(s.Incidents) || len(v.Events) != len(s.Events) {
		t.Errorf("Expected every record to be returned, got %+v", v)
	}
	if len(v.Rollups) != len(s.Rollups) {
		t.Fatalf("Expected %d rollups, got %d", len(s.Rollups), len(v.Rollups))
	}
	for i := 1; i < len(v.Rollups); i++ {
		if v.Rollups[i].Date.Before(v.Rollups[i-1].Date.Time) {
			t.Errorf("Expected rollups in chronological order, got %v before %v", v.Rollups[i-1].Date.Time, v.Rollups[i].Date.Time)
		}
	}
}

func TestFilter_BoundedWindow(t *testing.T) {
	v := Filter(sampleStore(), 30, now)

	var ids []int64
	for _, d := range v.Deployments {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Errorf("Expected deployments [1 2 3], got %v", ids)
	}
	if len(v.PullRequests) != 1 || v.PullRequests[0].Number != 1 {
		t.Errorf("Expected only PR 1, got %+v", v.PullRequests)
	}
	if len(v.Incidents) != 1 || v.Incidents[0].ID != "1" {
		t.Errorf("Expected only incident 1, got %+v", v.Incidents)
	}
	if len(v.Events) != 1 || v.Events[0].ID != 1 {
		t.Errorf("Expected only event 1, got %+v", v.Events)
	}
	if len(v.Rollups) != 3 {
		t.Fatalf("Expected 3 rollups, got %d", len(v.Rollups))
	}
	if v.Rollups[0].Deploys != 2 || v.Rollups[2].Deploys != 3 {
		t.Errorf("Expected oldest rollup first, got %+v", v.Rollups)
	}
}

func TestFilter_BoundedIsSubsetOfAllTime(t *testing.T) {
	s := sampleStore()
	all := Filter(s, AllTime, now)
	allIDs := make(map[int64]bool)
	for _, d := range all.Deployments {
		allIDs[d.ID] = true
	}

	for _, w := range []Window{1, 7, 30, 90} {
		v := Filter(s, w, now)
		if len(v.Deployments) > len(all.Deployments) || len(v.Rollups) > len(all.Rollups) {
			t.Errorf("Window %v: expected a subset of the unbounded view", w)
		}
		for _, d := range v.Deployments {
			if !allIDs[d.ID] {
				t.Errorf("Window %v: deployment %d missing from unbounded view", w, d.ID)
			}
		}
	}
}

func TestFilter_ZeroTimestampsExcludedFromBoundedWindows(t *testing.T) {
	v := Filter(sampleStore(), 90, now)
	for _, d := range v.Deployments {
		if d.ID == 6 {
			t.Error("Expected deployment without a timestamp to be excluded")
		}
	}
}

func TestFilter_DoesNotMutateStore(t *testing.T) {
	s := sampleStore()
	first := s.Rollups[0]
	v := Filter(s, AllTime, now)
	v.Deployments[0].Actor = "mallory"

	if s.Deployments[0].Actor != "alice" {
		t.Error("Expected store deployments to be untouched")
	}
	if s.Rollups[0] != first {
		t.Error("Expected store rollup order to be untouched")
	}
}

func TestFilter_NilAndEmptyStore(t *testing.T) {
	for _, s := range []*snapshot.Store{nil, snapshot.Empty()} {
		v := Filter(s, 30, now)
		if v.Deployments == nil || v.Rollups == nil || v.Events == nil {
			t.Errorf("Expected non-nil empty collections, got %+v", v)
		}
	}
}
