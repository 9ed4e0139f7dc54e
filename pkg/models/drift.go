package models

// Missing-rate drift status values. A ±2 percentage-point dead zone absorbs
// noise around "stable".
const (
	MissingImproved = "improved"
	MissingDegraded = "degraded"
	MissingStable   = "stable"
)

// Mean drift status values
const (
	MeanSignificantChange = "significant_change" // |change| > 20%
	MeanModerateChange    = "moderate_change"    // |change| > 5%
	MeanStable            = "stable"
)

// Overall drift classification values
const (
	DriftGood     = "good"
	DriftWarning  = "warning"
	DriftCritical = "critical"
)

// RowChanges describes the row-count delta between two dataset versions.
// DiffPct is relative to the old count and 0 when the old version is empty.
type RowChanges struct {
	Old     int     `json:"old"`
	New     int     `json:"new"`
	Diff    int     `json:"diff"`
	DiffPct float64 `json:"diff_pct"`
}

// ColumnChanges partitions the two column sets.
type ColumnChanges struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Common  []string `json:"common"`
}

// ColumnDrift is the per-column drift record. Mean fields are present only
// for columns numeric in both versions with a defined, non-zero old mean.
type ColumnDrift struct {
	MissingOld     float64  `json:"missing_old"`
	MissingNew     float64  `json:"missing_new"`
	MissingDiff    float64  `json:"missing_diff"`
	MissingStatus  string   `json:"missing_status"`
	DuplicatesDiff float64  `json:"duplicates_diff"`
	MeanOld        *float64 `json:"mean_old,omitempty"`
	MeanNew        *float64 `json:"mean_new,omitempty"`
	MeanChangePct  *float64 `json:"mean_change_pct,omitempty"`
	MeanStatus     string   `json:"mean_status,omitempty"`
}

// DriftReport compares an old and a new dataset version. QualityDrift keeps
// only columns that actually moved (non-zero missing delta or mean change);
// unchanged columns are omitted so the report stays proportional to drift.
type DriftReport struct {
	RowChanges    RowChanges             `json:"row_changes"`
	ColumnChanges ColumnChanges          `json:"column_changes"`
	QualityDrift  map[string]ColumnDrift `json:"quality_drift"`
	Summary       []string               `json:"summary"`
}

// DriftScore condenses a DriftReport into one classification.
type DriftScore struct {
	Overall           string `json:"overall"`
	IssuesCount       int    `json:"issues_count"`
	ImprovementsCount int    `json:"improvements_count"`
	Label             string `json:"label"`
}
