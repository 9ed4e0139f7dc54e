// Package profiler turns a parsed table into its statistical profile, a
// single quality score, and a concrete list of quality issues. Everything in
// this package is pure: no I/O, no shared state, deterministic for a given
// input.
package profiler

import (
	"math"
	"sort"

	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/stats"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

const (
	// zScoreThreshold marks a value as an outlier when its |z| exceeds it.
	zScoreThreshold = 3.0
	// minValuesForZScore is the smallest sample the z-score pass runs on;
	// below that the statistic is too unstable to report.
	minValuesForZScore = 4
	// topValueLimit caps the categorical frequency ranking.
	topValueLimit = 5
)

// Profile computes the full statistical snapshot of a table. Every column
// lands in exactly one of NumericStats or CategoricalStats; columns with no
// non-missing values count as numeric with null stats.
func Profile(t *tabular.Table) *models.DatasetProfile {
	rows := t.RowCount()
	profile := &models.DatasetProfile{
		TotalRows:         rows,
		TotalColumns:      t.ColumnCount(),
		Columns:           t.ColumnNames(),
		MissingValues:     make(map[string]int),
		MissingPercentage: make(map[string]float64),
		Duplicates:        t.DuplicateRows(),
		Dtypes:            make(map[string]string),
		NumericStats:      make(map[string]models.NumericStats),
		CategoricalStats:  make(map[string]models.CategoricalStats),
		Outliers:          make(map[string]models.OutlierStats),
	}
	if rows > 0 {
		profile.DuplicatesPercentage = stats.Round(float64(profile.Duplicates)/float64(rows)*100, 2)
	}

	for _, col := range t.Columns() {
		missing := col.MissingCount()
		profile.MissingValues[col.Name] = missing
		if rows > 0 {
			profile.MissingPercentage[col.Name] = stats.Round(float64(missing)/float64(rows)*100, 2)
		} else {
			profile.MissingPercentage[col.Name] = 0
		}
		profile.Dtypes[col.Name] = string(col.Kind)

		if col.Kind == tabular.KindCategorical {
			profile.CategoricalStats[col.Name] = categoricalStats(col)
			continue
		}
		profile.NumericStats[col.Name] = numericStats(col)
		if outliers, ok := zScoreOutliers(col, rows); ok {
			profile.Outliers[col.Name] = outliers
		}
	}
	return profile
}

func numericStats(col tabular.Column) models.NumericStats {
	values := col.Values()
	if len(values) == 0 {
		return models.NumericStats{}
	}
	s := models.NumericStats{
		Min:    round2Ptr(stats.Min(values)),
		Max:    round2Ptr(stats.Max(values)),
		Mean:   round2Ptr(stats.Mean(values)),
		Median: round2Ptr(stats.Median(values)),
	}
	// Sample std needs at least two values.
	if len(values) >= 2 {
		s.Std = round2Ptr(stats.StandardDeviation(values))
	}
	return s
}

func categoricalStats(col tabular.Column) models.CategoricalStats {
	counts := make(map[string]int)
	display := make(map[string]string)
	var order []string
	for _, cell := range col.Cells {
		if cell.Missing {
			continue
		}
		key := cell.Key()
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			display[key] = cell.String()
		}
		counts[key]++
	}

	// Rank by count descending; the stable sort keeps first-appearance order
	// for ties.
	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})

	limit := topValueLimit
	if limit > len(ranked) {
		limit = len(ranked)
	}
	top := make([]models.ValueCount, 0, limit)
	for _, key := range ranked[:limit] {
		top = append(top, models.ValueCount{Value: display[key], Count: counts[key]})
	}
	return models.CategoricalStats{
		UniqueCount: len(counts),
		TopValues:   top,
	}
}

// zScoreOutliers counts values lying more than three standard deviations
// from the rest of the column. Each value is scored against the mean and
// population std of the remaining values: a self-inclusive z-score is bounded
// by (n−1)/√n, so on small samples a gross outlier inflates the deviation
// enough to hide itself. Values differing from a zero-spread remainder count
// as outliers.
func zScoreOutliers(col tabular.Column, totalRows int) (models.OutlierStats, bool) {
	values := col.Values()
	n := len(values)
	if n < minValuesForZScore {
		return models.OutlierStats{}, false
	}

	// Work on mean-shifted values; the sum-of-squares form loses precision
	// when the magnitude dwarfs the spread.
	shift := stats.Mean(values)
	var shiftSum, shiftSumSq float64
	for _, v := range values {
		d := v - shift
		shiftSum += d
		shiftSumSq += d * d
	}

	count := 0
	rest := float64(n - 1)
	for _, v := range values {
		d := v - shift
		meanRest := (shiftSum - d) / rest
		variance := (shiftSumSq-d*d)/rest - meanRest*meanRest
		if variance <= 0 {
			if d != meanRest {
				count++
			}
			continue
		}
		if math.Abs(d-meanRest)/math.Sqrt(variance) > zScoreThreshold {
			count++
		}
	}
	return models.OutlierStats{
		Count:      count,
		Percentage: stats.Round(float64(count)/float64(totalRows)*100, 2),
	}, true
}

func round2Ptr(v float64) *float64 {
	r := stats.Round(v, 2)
	return &r
}
