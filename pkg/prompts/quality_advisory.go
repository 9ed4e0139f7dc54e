// Package prompts builds the prompts and system messages for the AI
// advisory operations. Builders take plain context structs so callers
// decide what subset of a profile or issue reaches the model.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NumericStatsContext mirrors a per-column numeric summary for prompt
// rendering. Nil fields render as JSON null, matching the stored profile.
type NumericStatsContext struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Std    *float64 `json:"std"`
}

// QualityReportContext carries the profiling snapshot the analysis prompt
// includes: overview counts, missing-value percentages, numeric stats.
type QualityReportContext struct {
	QualityScore         float64
	TotalRows            int
	TotalColumns         int
	Columns              []string
	Duplicates           int
	DuplicatesPercentage float64
	MissingPercentage    map[string]float64
	NumericStats         map[string]NumericStatsContext
}

// IssueContext is one detected quality issue, for the analysis and
// explanation prompts.
type IssueContext struct {
	Type         string `json:"issue_type"`
	Severity     string `json:"severity"`
	Column       string `json:"column,omitempty"`
	Description  string `json:"description"`
	AffectedRows int    `json:"affected_rows"`
}

// ColumnRuleContext describes one column for rule suggestion.
type ColumnRuleContext struct {
	Name         string
	Kind         string               // numeric, categorical, or unknown
	SampleValues []string             // up to 10 distinct values
	Stats        *NumericStatsContext // nil for non-numeric columns
}

// BuildQualityAnalysisPrompt creates the prompt for the dataset quality
// analysis advisory. It includes the quality score, dataset overview,
// missing-value and numeric-stat breakdowns, the detected issues, and the
// strict JSON response format.
func BuildQualityAnalysisPrompt(report QualityReportContext, issues []IssueContext) string {
	if issues == nil {
		issues = []IssueContext{}
	}

	var prompt strings.Builder

	prompt.WriteString("You are a Data Quality Expert. Analyze this dataset quality report and provide actionable recommendations.\n\n")

	prompt.WriteString(fmt.Sprintf("QUALITY SCORE: %g/100\n\n", report.QualityScore))

	prompt.WriteString("DATASET OVERVIEW:\n")
	prompt.WriteString(fmt.Sprintf("- Total rows: %d\n", report.TotalRows))
	prompt.WriteString(fmt.Sprintf("- Total columns: %d\n", report.TotalColumns))
	prompt.WriteString(fmt.Sprintf("- Columns: %s\n", strings.Join(report.Columns, ", ")))
	prompt.WriteString(fmt.Sprintf("- Duplicate rows: %d (%g%%)\n\n", report.Duplicates, report.DuplicatesPercentage))

	prompt.WriteString("MISSING VALUES:\n")
	prompt.WriteString(jsonBlock(report.MissingPercentage))
	prompt.WriteString("\n\n")

	prompt.WriteString("NUMERIC STATISTICS:\n")
	prompt.WriteString(jsonBlock(report.NumericStats))
	prompt.WriteString("\n\n")

	prompt.WriteString("DETECTED ISSUES:\n")
	prompt.WriteString(jsonBlock(issues))
	prompt.WriteString("\n\n")

	prompt.WriteString("Provide your analysis in this EXACT JSON format (no markdown, just JSON):\n")
	prompt.WriteString(`{
    "summary": "2-3 sentence overview of data quality",
    "critical_problems": [
        "problem 1",
        "problem 2"
    ],
    "recommendations": [
        "specific action 1",
        "specific action 2",
        "specific action 3"
    ],
    "ml_readiness": "assessment of whether this data is ready for ML models",
    "ml_risks": [
        "risk 1",
        "risk 2"
    ],
    "suggested_rules": [
        {"column": "column_name", "rule": "rule_type", "reason": "why"}
    ]
}
`)

	return prompt.String()
}

// BuildQualityAnalysisSystemMessage returns the system message for quality analysis.
func BuildQualityAnalysisSystemMessage() string {
	return `You are a data quality expert. Always respond with valid JSON only, no markdown, no extra text.`
}

// BuildRuleSuggestionPrompt creates the prompt asking for validation rule
// suggestions for a single column.
func BuildRuleSuggestionPrompt(column ColumnRuleContext) string {
	var prompt strings.Builder

	prompt.WriteString("You are a data validation expert.\n\n")

	prompt.WriteString("Analyze this column and suggest validation rules:\n")
	prompt.WriteString(fmt.Sprintf("- Column name: %s\n", column.Name))
	prompt.WriteString(fmt.Sprintf("- Data type: %s\n", column.Kind))
	prompt.WriteString(fmt.Sprintf("- Sample values: %s\n", strings.Join(column.SampleValues, ", ")))
	if column.Stats != nil {
		prompt.WriteString(fmt.Sprintf("- Statistics: %s\n", compactJSON(column.Stats)))
	} else {
		prompt.WriteString("- Statistics: N/A\n")
	}
	prompt.WriteString("\n")

	prompt.WriteString("Respond ONLY with valid JSON (no markdown):\n")
	prompt.WriteString(`{
    "rules": [
        {
            "type": "not_null",
            "reason": "why this rule is needed"
        },
        {
            "type": "range",
            "min": 0,
            "max": 100,
            "reason": "why this range makes sense"
        }
    ],
    "explanation": "brief explanation of the column's expected data"
}
`)
	prompt.WriteString("\nPossible rule types: not_null, unique, range, regex, min_length, max_length\n")

	return prompt.String()
}

// BuildRuleSuggestionSystemMessage returns the system message for rule suggestion.
func BuildRuleSuggestionSystemMessage() string {
	return `You are a data validation expert. Always respond with valid JSON only.`
}

// BuildIssueExplanationPrompt creates the prompt for a plain-language issue
// explanation. Sent without a system message; the word limit lives in the
// prompt itself.
func BuildIssueExplanationPrompt(issue IssueContext) string {
	var prompt strings.Builder

	prompt.WriteString("Explain this data quality issue in simple, non-technical language (2-3 sentences):\n\n")
	prompt.WriteString(fmt.Sprintf("Issue type: %s\n", issue.Type))
	prompt.WriteString(fmt.Sprintf("Column: %s\n", issue.Column))
	prompt.WriteString(fmt.Sprintf("Description: %s\n\n", issue.Description))
	prompt.WriteString("Then suggest one quick fix.\n")
	prompt.WriteString("Keep it under 100 words total.\n")

	return prompt.String()
}

// jsonBlock renders v as indented JSON for inclusion in a prompt section.
func jsonBlock(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// compactJSON renders v as single-line JSON.
func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
