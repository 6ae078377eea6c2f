package dora

import "github.com/reillywatson/dorastats/internal/snapshot"

// TrendSet holds the percentage change of each indicator between the newer
// and older half of a rollup sequence
type TrendSet struct {
	Frequency         float64
	LeadTime          float64
	ChangeFailureRate float64
	RecoveryTime      float64
}

// Trends splits chronological rollups in two. With the rows taken newest
// first and mid = n/2 (rounded down), the newest mid rows are the recent
// period and the rest are the previous period. An odd middle row therefore
// lands in the previous period.
func Trends(chronologicalRollups []snapshot.DailyRollup) TrendSet {
	n := len(chronologicalRollups)
	newestFirst := make([]snapshot.DailyRollup, n)
	for i, r := range chronologicalRollups {
		newestFirst[n-1-i] = r
	}
	mid := n / 2
	recent, previous := newestFirst[:mid], newestFirst[mid:]

	return TrendSet{
		Frequency:         trend(recent, previous, func(r snapshot.DailyRollup) float64 { return float64(r.Deploys) }),
		LeadTime:          trend(recent, previous, func(r snapshot.DailyRollup) float64 { return r.AvgLeadTimeHours }),
		ChangeFailureRate: trend(recent, previous, func(r snapshot.DailyRollup) float64 { return r.ChangeFailureRate }),
		RecoveryTime:      trend(recent, previous, func(r snapshot.DailyRollup) float64 { return r.MTTRMinutes / 60 }),
	}
}

// PercentChange is (recent - previous) / previous * 100, or 0 when previous is 0
func PercentChange(recent, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (recent - previous) / previous * 100
}

func trend(recent, previous []snapshot.DailyRollup, value func(snapshot.DailyRollup) float64) float64 {
	if len(recent) == 0 || len(previous) == 0 {
		return 0
	}
	return PercentChange(meanOf(recent, value), meanOf(previous, value))
}

func meanOf(rollups []snapshot.DailyRollup, value func(snapshot.DailyRollup) float64) float64 {
	values := make([]float64, 0, len(rollups))
	for _, r := range rollups {
		values = append(values, value(r))
	}
	return mean(values)
}
