package profiler

import (
	"fmt"

	"github.com/veracity-data/veracity-engine/pkg/anomaly"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/stats"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

const (
	// minRowsForAnomalies is the smallest dataset the forest runs on; the
	// algorithm is statistically unreliable below that.
	minRowsForAnomalies = 10
	// maxReportedIndices caps the index list in the report. Count and
	// percentage stay uncapped.
	maxReportedIndices = 50
)

// DetectAnomalies runs an isolation forest over the table's numeric columns
// and reports which rows look anomalous as a whole. Missing numeric cells are
// imputed with the column median first. A table with no numeric columns or
// fewer than 10 rows yields an empty report with an explanatory message;
// neither case is an error.
func DetectAnomalies(t *tabular.Table) *models.AnomalyReport {
	numeric := numericColumns(t)
	if len(numeric) == 0 {
		return emptyAnomalyReport("No numeric columns for anomaly detection")
	}
	rows := t.RowCount()
	if rows < minRowsForAnomalies {
		return emptyAnomalyReport("Not enough rows for anomaly detection (need at least 10)")
	}

	// Columns without a single value carry no signal and have no median to
	// impute with; they stay out of the feature matrix.
	features := make([]tabular.Column, 0, len(numeric))
	for _, col := range numeric {
		if len(col.Values()) > 0 {
			features = append(features, col)
		}
	}
	if len(features) == 0 {
		return emptyAnomalyReport("No numeric columns for anomaly detection")
	}

	matrix := featureMatrix(features, rows)
	forest := anomaly.New(anomaly.DefaultConfig())
	if err := forest.Fit(matrix); err != nil {
		return emptyAnomalyReport("Anomaly detection unavailable for this dataset")
	}
	flagged, err := forest.Flag(matrix)
	if err != nil {
		return emptyAnomalyReport("Anomaly detection unavailable for this dataset")
	}

	indices := flagged
	if len(indices) > maxReportedIndices {
		indices = indices[:maxReportedIndices]
	}
	return &models.AnomalyReport{
		AnomalyCount:      len(flagged),
		AnomalyPercentage: stats.Round(float64(len(flagged))/float64(rows)*100, 2),
		AnomalyIndices:    indices,
		Message:           fmt.Sprintf("Found %d anomalous rows", len(flagged)),
	}
}

// numericColumns returns the columns the detector considers numeric: inferred
// numeric plus empty columns, which have no evidence of being text.
func numericColumns(t *tabular.Table) []tabular.Column {
	var numeric []tabular.Column
	for _, col := range t.Columns() {
		if col.Kind != tabular.KindCategorical {
			numeric = append(numeric, col)
		}
	}
	return numeric
}

// featureMatrix builds a row-major matrix over the feature columns with
// missing cells replaced by the column median.
func featureMatrix(features []tabular.Column, rows int) [][]float64 {
	medians := make([]float64, len(features))
	for i, col := range features {
		medians[i] = stats.Median(col.Values())
	}
	matrix := make([][]float64, rows)
	for r := 0; r < rows; r++ {
		row := make([]float64, len(features))
		for i, col := range features {
			cell := col.Cells[r]
			if cell.Missing {
				row[i] = medians[i]
			} else {
				row[i] = cell.Num
			}
		}
		matrix[r] = row
	}
	return matrix
}

func emptyAnomalyReport(message string) *models.AnomalyReport {
	return &models.AnomalyReport{
		AnomalyIndices: []int{},
		Message:        message,
	}
}
