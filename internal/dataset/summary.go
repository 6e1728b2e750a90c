// Package dataset derives descriptive summaries of dilution-assay input for
// reporting alongside the fitted results.
package dataset

import (
	"goelda/domain/dilution"

	"github.com/montanaflynn/stats"
)

// Summarize returns one GroupSummary per group in first-appearance order.
func Summarize(ds dilution.Dataset) []dilution.GroupSummary {
	groups := ds.Groups()
	summaries := make([]dilution.GroupSummary, 0, len(groups))

	for _, g := range groups {
		var doses, rates stats.Float64Data
		distinct := make(map[float64]bool)
		summary := dilution.GroupSummary{Group: g}

		for _, o := range ds.Observations {
			if o.Group != g {
				continue
			}
			summary.Observations++
			summary.Tested += o.Tested
			summary.Responded += o.Responded
			doses = append(doses, o.Dose)
			distinct[o.Dose] = true
			if o.Tested > 0 {
				rates = append(rates, float64(o.Responded)/float64(o.Tested))
			}
		}

		summary.DistinctDoses = len(distinct)
		if min, err := doses.Min(); err == nil {
			summary.MinDose = min
		}
		if max, err := doses.Max(); err == nil {
			summary.MaxDose = max
		}
		if mean, err := rates.Mean(); err == nil {
			summary.MeanResponseRate = mean
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
