package profiler

import (
	"fmt"

	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/stats"
)

// ExtractIssues turns the profile's numbers into a concrete issue list, in a
// fixed order: per-column missing values, dataset duplicates, per-column
// outliers, then detector anomalies. A metric at zero produces no issue.
// IDs and timestamps are left for the store to assign.
func ExtractIssues(profile *models.DatasetProfile, anomalies *models.AnomalyReport) []*models.QualityIssue {
	var issues []*models.QualityIssue

	for _, col := range profile.Columns {
		pct := profile.MissingPercentage[col]
		if pct <= 0 {
			continue
		}
		severity := models.SeverityLow
		switch {
		case pct > 20:
			severity = models.SeverityHigh
		case pct > 5:
			severity = models.SeverityMedium
		}
		count := profile.MissingValues[col]
		issues = append(issues, &models.QualityIssue{
			IssueType:  models.IssueMissingValues,
			Severity:   severity,
			ColumnName: col,
			Description: fmt.Sprintf("Column '%s' has %s%% missing values (%d rows)",
				col, stats.FormatDecimal(pct), count),
			AffectedRows: count,
		})
	}

	if profile.Duplicates > 0 {
		severity := models.SeverityMedium
		if profile.DuplicatesPercentage > 10 {
			severity = models.SeverityHigh
		}
		issues = append(issues, &models.QualityIssue{
			IssueType: models.IssueDuplicates,
			Severity:  severity,
			Description: fmt.Sprintf("Found %d duplicate rows (%s%%)",
				profile.Duplicates, stats.FormatDecimal(profile.DuplicatesPercentage)),
			AffectedRows: profile.Duplicates,
		})
	}

	for _, col := range profile.Columns {
		o, ok := profile.Outliers[col]
		if !ok || o.Count == 0 {
			continue
		}
		severity := models.SeverityLow
		switch {
		case o.Percentage > 5:
			severity = models.SeverityHigh
		case o.Percentage > 1:
			severity = models.SeverityMedium
		}
		issues = append(issues, &models.QualityIssue{
			IssueType:  models.IssueOutliers,
			Severity:   severity,
			ColumnName: col,
			Description: fmt.Sprintf("Column '%s' has %d outliers (%s%%)",
				col, o.Count, stats.FormatDecimal(o.Percentage)),
			AffectedRows: o.Count,
		})
	}

	if anomalies.AnomalyCount > 0 {
		issues = append(issues, &models.QualityIssue{
			IssueType: models.IssueAnomalies,
			Severity:  models.SeverityMedium,
			Description: fmt.Sprintf("ML detected %d anomalous rows (%s%%)",
				anomalies.AnomalyCount, stats.FormatDecimal(anomalies.AnomalyPercentage)),
			AffectedRows: anomalies.AnomalyCount,
		})
	}

	return issues
}
