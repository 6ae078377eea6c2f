package api

import (
	"github.com/reillywatson/dorastats/internal/dora"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// DashboardResponse is everything the dashboard renders for one window
type DashboardResponse struct {
	Window          string             `json:"window"`
	Metrics         dora.Snapshot      `json:"metrics"`
	StatusBreakdown []dora.StatusCount `json:"statusBreakdown"`
	Actors          []dora.ActorStats  `json:"actors"`
	Authors         []dora.AuthorStats `json:"authors"`
}

// RollupsResponse is the chart series for one window
type RollupsResponse struct {
	Window string             `json:"window"`
	Points []dora.SeriesPoint `json:"points"`
}

// HealthResponse reports liveness and whether a snapshot is loaded
type HealthResponse struct {
	Status   string `json:"status"`
	Snapshot string `json:"snapshot"`
}
