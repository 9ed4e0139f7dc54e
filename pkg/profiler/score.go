package profiler

import (
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/stats"
)

// Penalty weights. Independent and additive, so a score is auditable from
// the profile alone.
const (
	missingPenalty   = 2.0
	duplicatePenalty = 1.5
	outlierPenalty   = 1.5
	anomalyPenalty   = 1.0
)

// Score condenses a profile and its anomaly report into a 0–100 quality
// score, rounded to one decimal. Each penalty scales a dataset-level rate:
// average missing percentage, duplicate percentage, average outlier
// percentage (over columns that have an outlier stat), anomaly percentage.
func Score(profile *models.DatasetProfile, anomalies *models.AnomalyReport) float64 {
	score := 100.0

	if len(profile.MissingPercentage) > 0 {
		total := 0.0
		for _, pct := range profile.MissingPercentage {
			total += pct
		}
		score -= total / float64(len(profile.MissingPercentage)) * missingPenalty
	}

	score -= profile.DuplicatesPercentage * duplicatePenalty

	if len(profile.Outliers) > 0 {
		total := 0.0
		for _, o := range profile.Outliers {
			total += o.Percentage
		}
		score -= total / float64(len(profile.Outliers)) * outlierPenalty
	}

	score -= anomalies.AnomalyPercentage * anomalyPenalty

	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}
	return stats.Round(score, 1)
}
