// Package drift compares two versions of a dataset and classifies how far
// their quality has moved. The comparison is structural (rows, columns) and
// statistical (missing rates, duplicate rates, numeric means); the score
// condenses it into good/warning/critical.
package drift

import (
	"fmt"
	"math"
	"strings"

	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/stats"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

// Classification thresholds, in percentage points.
const (
	missingDeadZone     = 2.0  // |missing delta| below this is stable
	missingSummaryBand  = 5.0  // |missing delta| above this makes the summary
	meanModerateBand    = 5.0  // |mean change| above this is moderate
	meanSignificantBand = 20.0 // |mean change| above this is significant
	rowChangeBand       = 30.0 // |row delta %| above this scores an issue
)

// Compare builds the drift report between an old and a new version. Columns
// are matched by name; per-column records are kept only when something moved
// (non-zero missing delta or mean change), so an unchanged dataset yields an
// empty QualityDrift and a "no drift" summary line.
func Compare(oldTable, newTable *tabular.Table) *models.DriftReport {
	report := &models.DriftReport{
		QualityDrift: make(map[string]models.ColumnDrift),
		Summary:      []string{},
	}

	oldRows, newRows := oldTable.RowCount(), newTable.RowCount()
	diff := newRows - oldRows
	report.RowChanges = models.RowChanges{Old: oldRows, New: newRows, Diff: diff}
	if oldRows > 0 {
		report.RowChanges.DiffPct = stats.Round(float64(diff)/float64(oldRows)*100, 2)
	}

	switch {
	case diff > 0:
		if oldRows > 0 {
			pct := stats.FormatDecimal(stats.Round(float64(diff)/float64(oldRows)*100, 1))
			report.Summary = append(report.Summary, fmt.Sprintf("✓ Added %d rows (+%s%%)", diff, pct))
		} else {
			report.Summary = append(report.Summary, fmt.Sprintf("✓ Added %d rows", diff))
		}
	case diff < 0:
		pct := stats.FormatDecimal(stats.Round(float64(diff)/float64(oldRows)*100, 1))
		report.Summary = append(report.Summary, fmt.Sprintf("⚠ Removed %d rows (%s%%)", -diff, pct))
	default:
		report.Summary = append(report.Summary, "→ Row count unchanged")
	}

	added, removed, common := partitionColumns(oldTable, newTable)
	report.ColumnChanges = models.ColumnChanges{Added: added, Removed: removed, Common: common}
	if len(added) > 0 {
		report.Summary = append(report.Summary, "✓ New columns: "+strings.Join(added, ", "))
	}
	if len(removed) > 0 {
		report.Summary = append(report.Summary, "⚠ Removed columns: "+strings.Join(removed, ", "))
	}

	for _, name := range common {
		oldCol, _ := oldTable.Column(name)
		newCol, _ := newTable.Column(name)

		oldMissing := cellRate(oldCol.MissingCount(), oldRows)
		newMissing := cellRate(newCol.MissingCount(), newRows)
		missingDiff := stats.Round(newMissing-oldMissing, 2)

		record := models.ColumnDrift{
			MissingOld:    oldMissing,
			MissingNew:    newMissing,
			MissingDiff:   missingDiff,
			MissingStatus: missingStatus(missingDiff),
			DuplicatesDiff: stats.Round(
				cellRate(newCol.DuplicateCells(), newRows)-cellRate(oldCol.DuplicateCells(), oldRows), 2),
		}

		if oldCol.Kind == tabular.KindNumeric && newCol.Kind == tabular.KindNumeric {
			oldMean := stats.Mean(oldCol.Values())
			newMean := stats.Mean(newCol.Values())
			if oldMean != 0 {
				change := stats.Round((newMean-oldMean)/math.Abs(oldMean)*100, 2)
				record.MeanOld = roundPtr(oldMean, 2)
				record.MeanNew = roundPtr(newMean, 2)
				record.MeanChangePct = &change
				record.MeanStatus = meanStatus(change)

				if math.Abs(change) > meanSignificantBand {
					report.Summary = append(report.Summary, fmt.Sprintf(
						"⚠ Column '%s' mean changed significantly: %s → %s (%+.1f%%)",
						name,
						stats.FormatDecimal(stats.Round(oldMean, 1)),
						stats.FormatDecimal(stats.Round(newMean, 1)),
						change))
				}
			}
		}

		meanMoved := record.MeanChangePct != nil && *record.MeanChangePct != 0
		if math.Abs(missingDiff) > 0 || meanMoved {
			report.QualityDrift[name] = record
		}

		if missingDiff > missingSummaryBand {
			report.Summary = append(report.Summary, fmt.Sprintf(
				"⚠ Column '%s' missing values increased: %s%% → %s%%",
				name, stats.FormatDecimal(oldMissing), stats.FormatDecimal(newMissing)))
		} else if missingDiff < -missingSummaryBand {
			report.Summary = append(report.Summary, fmt.Sprintf(
				"✓ Column '%s' missing values decreased: %s%% → %s%%",
				name, stats.FormatDecimal(oldMissing), stats.FormatDecimal(newMissing)))
		}
	}

	if len(report.QualityDrift) == 0 {
		report.Summary = append(report.Summary, "→ No significant quality drift detected")
	}
	return report
}

// Score condenses a drift report: one issue per degraded-missing column,
// significant mean change, and removed column, plus one when the row count
// moved more than 30%. Improvements count separately and never offset issues.
func Score(report *models.DriftReport) *models.DriftScore {
	issues, improvements := 0, 0

	for _, record := range report.QualityDrift {
		switch record.MissingStatus {
		case models.MissingDegraded:
			issues++
		case models.MissingImproved:
			improvements++
		}
		if record.MeanStatus == models.MeanSignificantChange {
			issues++
		}
	}

	issues += len(report.ColumnChanges.Removed)

	if math.Abs(report.RowChanges.DiffPct) > rowChangeBand {
		issues++
	}

	overall := models.DriftGood
	switch {
	case issues >= 3:
		overall = models.DriftCritical
	case issues >= 1:
		overall = models.DriftWarning
	}
	return &models.DriftScore{
		Overall:           overall,
		IssuesCount:       issues,
		ImprovementsCount: improvements,
		Label:             driftLabels[overall],
	}
}

var driftLabels = map[string]string{
	models.DriftCritical: "🔴 Significant degradation",
	models.DriftWarning:  "🟡 Minor changes detected",
	models.DriftGood:     "🟢 Data quality stable",
}

// partitionColumns splits the two column sets deterministically: added in the
// new table's order, removed and common in the old table's order.
func partitionColumns(oldTable, newTable *tabular.Table) (added, removed, common []string) {
	added, removed, common = []string{}, []string{}, []string{}

	oldNames := oldTable.ColumnNames()
	newNames := newTable.ColumnNames()
	oldSet := make(map[string]bool, len(oldNames))
	for _, name := range oldNames {
		oldSet[name] = true
	}
	newSet := make(map[string]bool, len(newNames))
	for _, name := range newNames {
		newSet[name] = true
	}

	for _, name := range newNames {
		if !oldSet[name] {
			added = append(added, name)
		}
	}
	for _, name := range oldNames {
		if newSet[name] {
			common = append(common, name)
		} else {
			removed = append(removed, name)
		}
	}
	return added, removed, common
}

func cellRate(count, rows int) float64 {
	if rows == 0 {
		return 0
	}
	return stats.Round(float64(count)/float64(rows)*100, 2)
}

func missingStatus(diff float64) string {
	switch {
	case diff < -missingDeadZone:
		return models.MissingImproved
	case diff > missingDeadZone:
		return models.MissingDegraded
	default:
		return models.MissingStable
	}
}

func meanStatus(change float64) string {
	switch {
	case math.Abs(change) > meanSignificantBand:
		return models.MeanSignificantChange
	case math.Abs(change) > meanModerateBand:
		return models.MeanModerateChange
	default:
		return models.MeanStable
	}
}

func roundPtr(v float64, places int) *float64 {
	r := stats.Round(v, places)
	return &r
}
