package dora

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/reillywatson/dorastats/internal/snapshot"
)

// Status of the change-failure-rate trend
const (
	StatusGood = "good"
	StatusBad  = "bad"
)

// Sources the aggregate indicators can come from
const (
	SourceRollup = "rollup"
	SourceRaw    = "raw"
)

const (
	// cfrGoodThreshold is the all-time change-failure percentage below which
	// the trend is considered good
	cfrGoodThreshold = 20.0

	// estimatedHoursPerIncidentEvent is the recovery estimate used when only
	// incident events are available
	estimatedHoursPerIncidentEvent = 3.0
)

// Snapshot is the fully populated set of display metrics for one window
type Snapshot struct {
	Window string `json:"window"`

	DeploymentsYesterday int `json:"deploymentsYesterday"`
	DeploymentsLastWeek  int `json:"deploymentsLastWeek"`
	DeploymentsLastMonth int `json:"deploymentsLastMonth"`

	TotalDeployments      int     `json:"totalDeployments"`
	SuccessfulDeployments int     `json:"successfulDeployments"`
	FailedDeployments     int     `json:"failedDeployments"`
	SuccessRate           float64 `json:"successRate"`

	DeploymentFrequency float64 `json:"deploymentFrequency"`
	LeadTimeHours       float64 `json:"leadTimeHours"`
	ChangeFailureRate   float64 `json:"changeFailureRate"`
	RecoveryTimeHours   float64 `json:"recoveryTimeHours"`
	AggregateSource     string  `json:"aggregateSource"`

	MaxLeadTimeHours  float64 `json:"maxLeadTimeHours"`
	MinLeadTimeHours  float64 `json:"minLeadTimeHours"`
	LastLeadTimeHours float64 `json:"lastLeadTimeHours"`

	MaxRecoveryHours  float64 `json:"maxRecoveryHours"`
	MinRecoveryHours  float64 `json:"minRecoveryHours"`
	LastRecoveryHours float64 `json:"lastRecoveryHours"`

	FrequencyTrend         float64 `json:"frequencyTrend"`
	LeadTimeTrend          float64 `json:"leadTimeTrend"`
	ChangeFailureRateTrend float64 `json:"changeFailureRateTrend"`
	RecoveryTimeTrend      float64 `json:"recoveryTimeTrend"`

	ChangeFailureStatus string `json:"changeFailureStatus"`
	WeeklyTrend         string `json:"weeklyTrend"`
}

// Derive computes every display metric for the filtered view. Fixed
// lookbacks and the failure-rate status read the unfiltered store. It never
// fails; missing data yields zeros.
func Derive(view View, full *snapshot.Store, now time.Time) Snapshot {
	if full == nil {
		full = snapshot.Empty()
	}
	s := Snapshot{Window: view.Window.String()}

	lastWeek := Filter(full, 7, now).Deployments
	s.DeploymentsYesterday = len(Filter(full, 1, now).Deployments)
	s.DeploymentsLastWeek = len(lastWeek)
	s.DeploymentsLastMonth = len(Filter(full, 30, now).Deployments)

	c := Classify(view.Deployments)
	s.TotalDeployments = c.Total
	s.SuccessfulDeployments = c.Successful
	s.FailedDeployments = c.Failed
	s.SuccessRate = c.SuccessRate()

	a := aggregate(view, now)
	s.DeploymentFrequency = a.frequency
	s.LeadTimeHours = a.leadTime
	s.ChangeFailureRate = a.cfr
	s.RecoveryTimeHours = a.recovery
	s.AggregateSource = a.source

	s.MaxLeadTimeHours, s.MinLeadTimeHours, s.LastLeadTimeHours = leadTimeExtremes(view.Deployments)
	s.MaxRecoveryHours, s.MinRecoveryHours, s.LastRecoveryHours = recoveryExtremes(view.Incidents)

	t := Trends(view.Rollups)
	s.FrequencyTrend = t.Frequency
	s.LeadTimeTrend = t.LeadTime
	s.ChangeFailureRateTrend = t.ChangeFailureRate
	s.RecoveryTimeTrend = t.RecoveryTime

	s.ChangeFailureStatus = ChangeFailureStatus(full, view.Window, now)
	s.WeeklyTrend = WeeklyTrend(lastWeek)
	return s
}

// Classification tallies deployments by outcome. States outside the known
// success and failure sets count only toward Total.
type Classification struct {
	Total      int
	Successful int
	Failed     int
}

// Classify tallies deployments by outcome
func Classify(deployments []snapshot.Deployment) Classification {
	c := Classification{Total: len(deployments)}
	for _, d := range deployments {
		switch {
		case d.Succeeded():
			c.Successful++
		case d.Failed():
			c.Failed++
		}
	}
	return c
}

// SuccessRate is successful/total as a percentage, 0 when there are no deployments
func (c Classification) SuccessRate() float64 {
	return percent(c.Successful, c.Total)
}

// FailureRate is failed/total as a percentage, 0 when there are no deployments
func (c Classification) FailureRate() float64 {
	return percent(c.Failed, c.Total)
}

type aggregates struct {
	frequency float64
	leadTime  float64
	cfr       float64
	recovery  float64
	source    string
}

// aggregate prefers the daily rollups and falls back to raw records when the
// view has none
func aggregate(view View, now time.Time) aggregates {
	if len(view.Rollups) > 0 {
		return rollupAggregates(view.Rollups)
	}
	return rawAggregates(view, now)
}

func rollupAggregates(rollups []snapshot.DailyRollup) aggregates {
	var deploys, leadTimes, cfrs []float64
	var recovery float64
	for _, r := range rollups {
		// recovery is the total burden over the window, zero-deploy days included
		recovery += r.MTTRMinutes / 60
		if r.Deploys <= 0 {
			continue
		}
		deploys = append(deploys, float64(r.Deploys))
		leadTimes = append(leadTimes, r.AvgLeadTimeHours)
		cfrs = append(cfrs, r.ChangeFailureRate)
	}
	return aggregates{
		frequency: mean(deploys),
		leadTime:  mean(leadTimes),
		cfr:       mean(cfrs) * 100,
		recovery:  recovery,
		source:    SourceRollup,
	}
}

func rawAggregates(view View, now time.Time) aggregates {
	a := aggregates{source: SourceRaw}

	total := len(view.Deployments)
	if total > 0 {
		oldest := view.Deployments[0].CreatedAt.Time
		for _, d := range view.Deployments[1:] {
			if d.CreatedAt.Before(oldest) {
				oldest = d.CreatedAt.Time
			}
		}
		days := math.Floor(now.Sub(oldest).Hours() / 24)
		a.frequency = float64(total) / math.Max(1, days)
	}

	var leadTimes []float64
	for _, d := range view.Deployments {
		if lt, ok := d.LeadTime(); ok {
			leadTimes = append(leadTimes, lt.Hours())
		}
	}
	a.leadTime = mean(leadTimes)
	a.cfr = Classify(view.Deployments).FailureRate()

	if len(view.Incidents) > 0 {
		for _, inc := range view.Incidents {
			a.recovery += inc.DurationHours()
		}
	} else {
		// coarse estimate: no measured durations are available
		for _, e := range view.Events {
			if e.Type == snapshot.EventIncident {
				a.recovery += estimatedHoursPerIncidentEvent
			}
		}
	}
	return a
}

// leadTimeExtremes returns max, min and most recent lead time in hours over
// deployments with a positive duration. The most recent is by creation time;
// among equal creation times the later entry in the input wins.
func leadTimeExtremes(deployments []snapshot.Deployment) (maxH, minH, lastH float64) {
	type sample struct {
		at    time.Time
		hours float64
	}
	var samples []sample
	for _, d := range deployments {
		if lt, ok := d.LeadTime(); ok {
			samples = append(samples, sample{at: d.CreatedAt.Time, hours: lt.Hours()})
		}
	}
	if len(samples) == 0 {
		return 0, 0, 0
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

	maxH, minH = samples[0].hours, samples[0].hours
	for _, s := range samples[1:] {
		maxH = math.Max(maxH, s.hours)
		minH = math.Min(minH, s.hours)
	}
	return maxH, minH, samples[len(samples)-1].hours
}

// recoveryExtremes returns max, min and most recent incident duration in hours
func recoveryExtremes(incidents []snapshot.Incident) (maxH, minH, lastH float64) {
	if len(incidents) == 0 {
		return 0, 0, 0
	}
	sorted := append([]snapshot.Incident{}, incidents...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt.Time) })

	maxH, minH = sorted[0].DurationHours(), sorted[0].DurationHours()
	for _, inc := range sorted[1:] {
		maxH = math.Max(maxH, inc.DurationHours())
		minH = math.Min(minH, inc.DurationHours())
	}
	return maxH, minH, sorted[len(sorted)-1].DurationHours()
}

// ChangeFailureStatus grades the failure trend. Unbounded windows compare
// the all-time failure rate to a fixed threshold; bounded windows compare the
// current period's failures with the preceding period of equal length.
func ChangeFailureStatus(full *snapshot.Store, w Window, now time.Time) string {
	if full == nil {
		full = snapshot.Empty()
	}
	if !w.Bounded() {
		if Classify(full.Deployments).FailureRate() < cfrGoodThreshold {
			return StatusGood
		}
		return StatusBad
	}

	cutoff := w.Cutoff(now)
	previousStart := w.Cutoff(cutoff)
	current := Classify(since(full.Deployments, cutoff, now)).Failed
	previous := Classify(since(full.Deployments, previousStart, cutoff)).Failed
	if current <= previous {
		return StatusGood
	}
	return StatusBad
}

// WeeklyTrend renders the one-line summary of last week's deployments
func WeeklyTrend(lastWeek []snapshot.Deployment) string {
	c := Classify(lastWeek)
	if c.Total == 0 {
		return fmt.Sprintf("%d deployments in last week", c.Total)
	}
	return fmt.Sprintf("%d deployments in last week, with %d%% success rate", c.Total, int(math.Round(c.SuccessRate())))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
