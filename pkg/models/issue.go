package models

import (
	"time"

	"github.com/google/uuid"
)

// Issue type values
const (
	IssueMissingValues = "missing_values"
	IssueDuplicates    = "duplicates"
	IssueOutliers      = "outliers"
	IssueAnomalies     = "anomalies" // flagged by the multivariate detector
)

// Issue severity values
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// QualityIssue is one concrete problem detected during profiling. Stored in
// quality_issues table. ColumnName is empty for dataset-wide issues
// (duplicates, anomalies).
type QualityIssue struct {
	ID           uuid.UUID `json:"id"`
	DatasetID    uuid.UUID `json:"dataset_id"`
	IssueType    string    `json:"issue_type"`
	Severity     string    `json:"severity"`
	ColumnName   string    `json:"column_name,omitempty"`
	Description  string    `json:"description"`
	AffectedRows int       `json:"affected_rows"`
	CreatedAt    time.Time `json:"created_at"`
}
