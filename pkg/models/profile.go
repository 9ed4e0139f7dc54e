package models

import (
	"time"

	"github.com/google/uuid"
)

// Column kind strings reported in DatasetProfile.Dtypes
const (
	DtypeNumeric     = "numeric"
	DtypeCategorical = "categorical"
	DtypeUnknown     = "unknown" // column with no non-missing values
)

// NumericStats summarizes one numeric column. Fields are nil (JSON null) when
// the column lacks the data to compute them: all of them for an empty column,
// Std alone when there are fewer than two values. Rounded to 2 decimals.
type NumericStats struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Std    *float64 `json:"std"`
}

// ValueCount is one entry of a frequency ranking. A slice of these keeps rank
// order through JSON encoding, which a map would lose.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CategoricalStats summarizes one non-numeric column.
type CategoricalStats struct {
	UniqueCount int          `json:"unique_count"`
	TopValues   []ValueCount `json:"top_values"` // top 5 by count, ties by first appearance
}

// OutlierStats reports z-score outliers for one numeric column. Percentage is
// relative to total row count.
type OutlierStats struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DatasetProfile is the full statistical snapshot of one dataset version.
// Every column appears in exactly one of NumericStats or CategoricalStats;
// columns with no data at all count as numeric with null stats.
type DatasetProfile struct {
	TotalRows            int                         `json:"total_rows"`
	TotalColumns         int                         `json:"total_columns"`
	Columns              []string                    `json:"columns"`
	MissingValues        map[string]int              `json:"missing_values"`
	MissingPercentage    map[string]float64          `json:"missing_percentage"`
	Duplicates           int                         `json:"duplicates"`
	DuplicatesPercentage float64                     `json:"duplicates_percentage"`
	Dtypes               map[string]string           `json:"dtypes"`
	NumericStats         map[string]NumericStats     `json:"numeric_stats"`
	CategoricalStats     map[string]CategoricalStats `json:"categorical_stats"`
	Outliers             map[string]OutlierStats     `json:"outliers"`
}

// AnomalyReport is the outcome of one multivariate anomaly pass. When the
// dataset is too small or has no numeric columns the report is empty and
// Message says why; that is a policy decision, not an error.
type AnomalyReport struct {
	AnomalyCount      int     `json:"anomaly_count"`
	AnomalyPercentage float64 `json:"anomaly_percentage"`
	AnomalyIndices    []int   `json:"anomaly_indices"` // 0-based, ascending, capped at 50
	Message           string  `json:"message"`
}

// ProfileMetrics is the jsonb payload persisted with a quality profile.
type ProfileMetrics struct {
	Profile   *DatasetProfile `json:"profile"`
	Anomalies *AnomalyReport  `json:"anomalies"`
}

// QualityProfile is one stored profiling run. Stored in quality_profiles
// table; the latest row by CreatedAt is the dataset's current profile.
type QualityProfile struct {
	ID           uuid.UUID      `json:"id"`
	DatasetID    uuid.UUID      `json:"dataset_id"`
	QualityScore float64        `json:"quality_score"`
	Metrics      ProfileMetrics `json:"metrics"`
	CreatedAt    time.Time      `json:"created_at"`
}
