package snapshot

import "time"

// Deployment states as reported by the GitHub deployment statuses API
const (
	StateSuccess  = "success"
	StateInactive = "inactive"
	StateError    = "error"
	StateFailure  = "failure"
	// recorded by the collector for a deployment with no status yet
	StateUnknown = "unknown"
)

// Event types in the unified event stream
const (
	EventDeployment = "deployment"
	EventPRMerge    = "pr_merge"
	EventIncident   = "incident"
)

// Deployment is a single deployment to the tracked environment
type Deployment struct {
	ID          int64     `json:"deployment_id"`
	Environment string    `json:"environment"`
	CreatedAt   Timestamp `json:"created_at_utc"`
	FinishedAt  Timestamp `json:"finished_at_utc"`
	State       string    `json:"state"`
	Actor       string    `json:"actor"`
	SHA         string    `json:"sha"`
	Ref         string    `json:"ref"`
}

// LeadTime returns finished-at minus created-at. The second result is false
// when either timestamp is missing or the duration is not strictly positive.
func (d Deployment) LeadTime() (time.Duration, bool) {
	if d.CreatedAt.IsZero() || d.FinishedAt.IsZero() {
		return 0, false
	}
	lt := d.FinishedAt.Sub(d.CreatedAt.Time)
	if lt <= 0 {
		return 0, false
	}
	return lt, true
}

// Succeeded reports whether the deployment reached a successful state
func (d Deployment) Succeeded() bool {
	return d.State == StateSuccess || d.State == StateInactive
}

// Failed reports whether the deployment ended in a failed state
func (d Deployment) Failed() bool {
	return d.State == StateError || d.State == StateFailure
}

// PullRequest is a merged pull request
type PullRequest struct {
	Number   int       `json:"pr_number"`
	MergedAt Timestamp `json:"pr_merged_at_utc"`
	MergeSHA string    `json:"pr_merge_sha"`
	Author   string    `json:"author"`
}

// Incident is a production incident with an authoritative duration
type Incident struct {
	ID              string    `json:"incident_id"`
	Title           string    `json:"title"`
	CreatedAt       Timestamp `json:"created_utc"`
	ClosedAt        Timestamp `json:"closed_utc"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// DurationHours is the incident duration in hours
func (i Incident) DurationHours() float64 {
	return i.DurationMinutes / 60
}

// DailyRollup is the pipeline's pre-aggregated summary for one day
type DailyRollup struct {
	Date              Date    `json:"date"`
	Deploys           int     `json:"deploys"`
	FailedDeploys     int     `json:"failed_deploys"`
	ChangeFailureRate float64 `json:"cfr"`
	AvgLeadTimeHours  float64 `json:"avg_lt_hours"`
	MTTRMinutes       float64 `json:"mttr_min"`
}

// Event is an entry of the unified event stream
type Event struct {
	ID           int64     `json:"event_id"`
	Type         string    `json:"event_type"`
	When         Timestamp `json:"when_utc"`
	SHA          string    `json:"sha,omitempty"`
	PRNumber     int       `json:"pr_number,omitempty"`
	DeploymentID int64     `json:"deployment_id,omitempty"`
	IncidentID   string    `json:"incident_id,omitempty"`
	Title        string    `json:"title,omitempty"`
	State        string    `json:"state,omitempty"`
}

// Store is the immutable record snapshot. Every collection is non-nil after
// Decode or Normalize, so callers never need presence checks.
type Store struct {
	Deployments  []Deployment  `json:"fact_deployment"`
	PullRequests []PullRequest `json:"fact_pr"`
	Incidents    []Incident    `json:"fact_incident"`
	Rollups      []DailyRollup `json:"dora_summary_daily"`
	Events       []Event       `json:"dora_events"`
}

// Normalize replaces nil collections with empty ones
func (s *Store) Normalize() {
	if s.Deployments == nil {
		s.Deployments = []Deployment{}
	}
	if s.PullRequests == nil {
		s.PullRequests = []PullRequest{}
	}
	if s.Incidents == nil {
		s.Incidents = []Incident{}
	}
	if s.Rollups == nil {
		s.Rollups = []DailyRollup{}
	}
	if s.Events == nil {
		s.Events = []Event{}
	}
}

// Empty returns a store with every collection present and empty
func Empty() *Store {
	s := &Store{}
	s.Normalize()
	return s
}
