package dora

// SeriesPoint is one day of the chart series
type SeriesPoint struct {
	Date          string  `json:"date"`
	Deploys       int     `json:"deploys"`
	FailedDeploys int     `json:"failedDeploys"`
	ChangeFailure float64 `json:"changeFailureRate"`
	LeadTimeHours float64 `json:"leadTimeHours"`
	RecoveryHours float64 `json:"recoveryHours"`
}

// RollupSeries converts the view's rollups into chart points, oldest first
func RollupSeries(view View) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(view.Rollups))
	for _, r := range view.Rollups {
		points = append(points, SeriesPoint{
			Date:          r.Date.DateString(),
			Deploys:       r.Deploys,
			FailedDeploys: r.FailedDeploys,
			ChangeFailure: r.ChangeFailureRate * 100,
			LeadTimeHours: r.AvgLeadTimeHours,
			RecoveryHours: r.MTTRMinutes / 60,
		})
	}
	return points
}
