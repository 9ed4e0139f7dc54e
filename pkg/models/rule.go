package models

import (
	"time"

	"github.com/google/uuid"
)

// Rule type values
const (
	RuleNotNull   = "not_null"
	RuleUnique    = "unique"
	RuleRange     = "range"
	RuleRegex     = "regex"
	RuleMinLength = "min_length"
	RuleMaxLength = "max_length"
)

// ValidationRule binds one check to one column of a dataset. Stored in
// validation_rules table. Parameters holds the rule-type-specific settings
// ({"min": 0, "max": 100}, {"pattern": "^..."}, {"n": 5}); not_null and
// unique take none.
type ValidationRule struct {
	ID         uuid.UUID      `json:"id"`
	DatasetID  uuid.UUID      `json:"dataset_id"`
	ColumnName string         `json:"column_name"`
	RuleType   string         `json:"rule_type"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"created_at"`
}
