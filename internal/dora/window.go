// Package dora derives DORA indicators from a record snapshot.
//
// Every function here is pure: the clock is always passed in as now, the
// input store is never mutated, and empty inputs produce zero-valued
// results instead of errors.
package dora

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

const day = 24 * time.Hour

// Window is a lookback in days. AllTime means unbounded.
type Window int

const (
	AllTime       Window = 0
	DefaultWindow Window = 30
)

// Selectable windows offered to the presentation layer
var Windows = []Window{7, 30, 90, AllTime}

// Bounded reports whether the window restricts records by time
func (w Window) Bounded() bool {
	return w > 0
}

// Cutoff returns now minus the window length. Only meaningful when Bounded.
func (w Window) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(w) * day)
}

func (w Window) String() string {
	if !w.Bounded() {
		return "all"
	}
	return strconv.Itoa(int(w))
}

// ParseWindow parses a window selector. The empty string selects the default.
func ParseWindow(s string) (Window, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return DefaultWindow, nil
	}
	if s == "all" || s == "null" {
		return AllTime, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	for _, w := range Windows {
		if w.Bounded() && int(w) == n {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unsupported window %q", s)
}

// View is a window-restricted copy of a store. Rollups are chronological
// (oldest first).
type View struct {
	Window       Window
	Deployments  []snapshot.Deployment
	PullRequests []snapshot.PullRequest
	Incidents    []snapshot.Incident
	Events       []snapshot.Event
	Rollups      []snapshot.DailyRollup
}

// Filter restricts store to the records whose governing timestamp is at or
// after now minus the window. The returned slices never alias the store.
func Filter(store *snapshot.Store, w Window, now time.Time) View {
	if store == nil {
		store = snapshot.Empty()
	}
	v := View{Window: w}
	if !w.Bounded() {
		v.Deployments = append([]snapshot.Deployment{}, store.Deployments...)
		v.PullRequests = append([]snapshot.PullRequest{}, store.PullRequests...)
		v.Incidents = append([]snapshot.Incident{}, store.Incidents...)
		v.Events = append([]snapshot.Event{}, store.Events...)
		v.Rollups = chronological(store.Rollups)
		return v
	}

	cutoff := w.Cutoff(now)
	v.Deployments = []snapshot.Deployment{}
	for _, d := range store.Deployments {
		if !d.CreatedAt.Before(cutoff) {
			v.Deployments = append(v.Deployments, d)
		}
	}
	v.PullRequests = []snapshot.PullRequest{}
	for _, pr := range store.PullRequests {
		if !pr.MergedAt.Before(cutoff) {
			v.PullRequests = append(v.PullRequests, pr)
		}
	}
	v.Incidents = []snapshot.Incident{}
	for _, inc := range store.Incidents {
		if !inc.CreatedAt.Before(cutoff) {
			v.Incidents = append(v.Incidents, inc)
		}
	}
	v.Events = []snapshot.Event{}
	for _, e := range store.Events {
		if !e.When.Before(cutoff) {
			v.Events = append(v.Events, e)
		}
	}
	var rollups []snapshot.DailyRollup
	for _, r := range store.Rollups {
		if !r.Date.Before(cutoff) {
			rollups = append(rollups, r)
		}
	}
	v.Rollups = chronological(rollups)
	return v
}

// chronological returns a sorted copy, oldest day first. Stable so rows
// sharing a date keep their relative order.
func chronological(rollups []snapshot.DailyRollup) []snapshot.DailyRollup {
	out := append([]snapshot.DailyRollup{}, rollups...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// since returns the deployments created in [from, to). Unlike Filter, which
// only bounds from below, deployments dated after to are left out.
func since(deployments []snapshot.Deployment, from, to time.Time) []snapshot.Deployment {
	var out []snapshot.Deployment
	for _, d := range deployments {
		if !d.CreatedAt.Before(from) && d.CreatedAt.Before(to) {
			out = append(out, d)
		}
	}
	return out
}
