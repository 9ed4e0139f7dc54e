package rules

import (
	"fmt"

	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

const (
	// maxEvidenceRows caps per-rule violation evidence; the violation count
	// stays uncapped.
	maxEvidenceRows = 50
	// maxCellChars and maxFieldChars hard-cap evidence strings.
	maxCellChars  = 100
	maxFieldChars = 50
)

// Validate evaluates every rule against the table, in input order. A rule
// referencing an absent column yields an ERROR result and forces the
// aggregate to FAILED; an inapplicable rule (range on text) yields SKIPPED
// and counts toward neither passed nor failed.
func Validate(table *tabular.Table, ruleList []*models.ValidationRule) *models.ValidationReport {
	if len(ruleList) == 0 {
		return &models.ValidationReport{
			Status:  models.ValidationNoRules,
			Message: "No validation rules defined",
		}
	}

	report := &models.ValidationReport{
		OverallStatus: models.ValidationPassed,
		TotalRules:    len(ruleList),
		Results:       make([]*models.RuleResult, 0, len(ruleList)),
	}
	for _, rule := range ruleList {
		result := evaluateRule(table, rule)
		switch result.Status {
		case models.ValidationPassed:
			report.Passed++
		case models.ValidationFailed:
			report.Failed++
			report.OverallStatus = models.ValidationFailed
		case models.ValidationError:
			// Misconfiguration fails the run without counting as a data
			// failure.
			report.OverallStatus = models.ValidationFailed
		}
		report.Results = append(report.Results, result)
	}
	return report
}

func evaluateRule(table *tabular.Table, rule *models.ValidationRule) *models.RuleResult {
	result := &models.RuleResult{
		RuleID:           rule.ID,
		Column:           rule.ColumnName,
		RuleType:         rule.RuleType,
		Parameters:       rule.Parameters,
		Status:           models.ValidationPassed,
		Message:          "All values valid",
		ViolationDetails: []models.ViolationDetail{},
	}

	col, ok := table.Column(rule.ColumnName)
	if !ok {
		result.Status = models.ValidationError
		result.Message = fmt.Sprintf("Column '%s' not found in dataset", rule.ColumnName)
		return result
	}

	if rule.RuleType == models.RuleRange && col.Kind != tabular.KindNumeric {
		result.Status = models.ValidationSkipped
		result.Message = fmt.Sprintf("Column '%s' is not numeric (type: %s). Range rule skipped.",
			rule.ColumnName, col.Kind)
		return result
	}

	params, err := ParseParams(rule.RuleType, rule.Parameters)
	if err != nil {
		result.Status = models.ValidationError
		result.Message = err.Error()
		return result
	}

	mask := violationMask(col, rule.RuleType, params)
	violations := 0
	for _, violated := range mask {
		if violated {
			violations++
		}
	}
	if violations > 0 {
		result.Status = models.ValidationFailed
		result.Message = fmt.Sprintf("Found %d violations", violations)
		result.Violations = violations
		result.ViolationDetails = collectEvidence(table, col, mask)
	}
	return result
}

// violationMask computes the per-row violation flags for one rule. Missing
// cells violate only not_null; every other rule treats them as absent data
// rather than bad data.
func violationMask(col *tabular.Column, ruleType string, params Params) []bool {
	mask := make([]bool, len(col.Cells))
	switch ruleType {
	case models.RuleNotNull:
		for i, cell := range col.Cells {
			mask[i] = cell.Missing
		}

	case models.RuleUnique:
		counts := make(map[string]int, len(col.Cells))
		for _, cell := range col.Cells {
			counts[cell.Key()]++
		}
		// Every occurrence of a duplicated value violates, not just the
		// repeats; missing cells compare equal to each other.
		for i, cell := range col.Cells {
			mask[i] = counts[cell.Key()] > 1
		}

	case models.RuleRange:
		for i, cell := range col.Cells {
			if cell.Missing || !cell.Numeric {
				continue
			}
			if params.Range.Min != nil && cell.Num < *params.Range.Min {
				mask[i] = true
			}
			if params.Range.Max != nil && cell.Num > *params.Range.Max {
				mask[i] = true
			}
		}

	case models.RuleRegex:
		for i, cell := range col.Cells {
			if cell.Missing {
				continue
			}
			mask[i] = !params.Regex.MatchesStart(cell.String())
		}

	case models.RuleMinLength:
		for i, cell := range col.Cells {
			if cell.Missing {
				continue
			}
			mask[i] = len([]rune(cell.String())) < params.MinLength.N
		}

	case models.RuleMaxLength:
		for i, cell := range col.Cells {
			if cell.Missing {
				continue
			}
			mask[i] = len([]rune(cell.String())) > params.MaxLength.N
		}
	}
	return mask
}

// collectEvidence snapshots the first violating rows: the offending value
// plus the full row for context, all hard-truncated so payloads stay
// bounded. Missing cells render as "".
func collectEvidence(table *tabular.Table, col *tabular.Column, mask []bool) []models.ViolationDetail {
	details := make([]models.ViolationDetail, 0, maxEvidenceRows)
	for i, violated := range mask {
		if !violated {
			continue
		}
		if len(details) == maxEvidenceRows {
			break
		}
		rowData := make(map[string]string, table.ColumnCount())
		for _, other := range table.Columns() {
			rowData[other.Name] = truncateRunes(other.Cells[i].String(), maxFieldChars)
		}
		details = append(details, models.ViolationDetail{
			RowIndex:    i,
			ColumnValue: truncateRunes(col.Cells[i].String(), maxCellChars),
			RowData:     rowData,
		})
	}
	return details
}

// truncateRunes hard-caps s at max characters, with no ellipsis.
func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
