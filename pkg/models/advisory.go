package models

import (
	"encoding/json"

	"github.com/veracity-data/veracity-engine/pkg/jsonutil"
)

// SuggestedRule is one rule recommendation inside a quality analysis.
type SuggestedRule struct {
	Column string `json:"column"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// QualityAnalysis is the structured verdict returned by the AI advisor for a
// profiled dataset. The advisor answers in strict JSON matching this shape.
type QualityAnalysis struct {
	Summary          string          `json:"summary"`
	CriticalProblems []string        `json:"critical_problems"`
	Recommendations  []string        `json:"recommendations"`
	MLReadiness      string          `json:"ml_readiness"`
	MLRisks          []string        `json:"ml_risks"`
	SuggestedRules   []SuggestedRule `json:"suggested_rules"`
}

// UnmarshalJSON tolerates scalar-type drift in the string fields: models
// sometimes answer with bare numbers or booleans where strings were asked
// for, and list fields may mix scalar types.
func (a *QualityAnalysis) UnmarshalJSON(data []byte) error {
	var raw struct {
		Summary          json.RawMessage `json:"summary"`
		CriticalProblems json.RawMessage `json:"critical_problems"`
		Recommendations  json.RawMessage `json:"recommendations"`
		MLReadiness      json.RawMessage `json:"ml_readiness"`
		MLRisks          json.RawMessage `json:"ml_risks"`
		SuggestedRules   []SuggestedRule `json:"suggested_rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Summary = jsonutil.FlexibleString(raw.Summary)
	a.CriticalProblems = jsonutil.FlexibleStringSlice(raw.CriticalProblems)
	a.Recommendations = jsonutil.FlexibleStringSlice(raw.Recommendations)
	a.MLReadiness = jsonutil.FlexibleString(raw.MLReadiness)
	a.MLRisks = jsonutil.FlexibleStringSlice(raw.MLRisks)
	a.SuggestedRules = raw.SuggestedRules
	return nil
}

// RuleProposal is one concrete validation rule the advisor proposes for a
// column. Optional fields carry the rule-type specific parameters.
type RuleProposal struct {
	Type    string   `json:"type"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	N       *int     `json:"n,omitempty"`
	Reason  string   `json:"reason"`
}

// RuleSuggestions is the advisor's answer for one column.
type RuleSuggestions struct {
	Rules       []RuleProposal `json:"rules"`
	Explanation string         `json:"explanation"`
}
