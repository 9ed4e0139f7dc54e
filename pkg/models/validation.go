package models

import "github.com/google/uuid"

// Per-rule validation status values
const (
	ValidationPassed  = "PASSED"
	ValidationFailed  = "FAILED"
	ValidationError   = "ERROR"   // rule misconfigured (e.g. column missing)
	ValidationSkipped = "SKIPPED" // rule not applicable to the column's type
)

// ValidationNoRules is the report status when a dataset has no rules defined.
const ValidationNoRules = "no_rules"

// ViolationDetail is one violating row, captured as evidence. ColumnValue is
// truncated to 100 characters and each RowData field to 50; missing cells
// render as "".
type ViolationDetail struct {
	RowIndex    int               `json:"row_index"`
	ColumnValue string            `json:"column_value"`
	RowData     map[string]string `json:"row_data"`
}

// RuleResult is the outcome of applying one rule to its column. Evidence is
// capped at the first 50 violating rows; Violations carries the full count.
type RuleResult struct {
	RuleID           uuid.UUID         `json:"rule_id"`
	Column           string            `json:"column"`
	RuleType         string            `json:"rule_type"`
	Parameters       map[string]any    `json:"parameters"`
	Status           string            `json:"status"`
	Message          string            `json:"message"`
	Violations       int               `json:"violations"`
	ViolationDetails []ViolationDetail `json:"violation_details"`
}

// ValidationReport aggregates one validation run. With no rules defined,
// Status is "no_rules", Message explains, and Results is empty. Otherwise
// OverallStatus is FAILED when any rule failed or errored; SKIPPED rules
// count toward neither Passed nor Failed.
type ValidationReport struct {
	Status        string        `json:"status,omitempty"`
	Message       string        `json:"message,omitempty"`
	OverallStatus string        `json:"overall_status,omitempty"`
	TotalRules    int           `json:"total_rules"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Results       []*RuleResult `json:"results,omitempty"`
}
