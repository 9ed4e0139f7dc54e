package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veracity-data/veracity-engine/pkg/models"
)

func TestParseParams_RangeCoercesLooseInputs(t *testing.T) {
	params, err := ParseParams(models.RuleRange, map[string]any{
		"min": "0",
		"max": 100,
	})
	require.NoError(t, err)
	require.NotNil(t, params.Range)
	assert.Equal(t, 0.0, *params.Range.Min)
	assert.Equal(t, 100.0, *params.Range.Max)
}

func TestParseParams_RangeAcceptsSingleBound(t *testing.T) {
	params, err := ParseParams(models.RuleRange, map[string]any{"max": 10.5})
	require.NoError(t, err)
	assert.Nil(t, params.Range.Min)
	assert.Equal(t, 10.5, *params.Range.Max)
}

func TestParseParams_RangeRequiresABound(t *testing.T) {
	_, err := ParseParams(models.RuleRange, map[string]any{})
	assert.ErrorContains(t, err, "at least one of min, max")

	_, err = ParseParams(models.RuleRange, map[string]any{"min": nil})
	assert.ErrorContains(t, err, "at least one of min, max")
}

func TestParseParams_RangeRejectsGarbage(t *testing.T) {
	_, err := ParseParams(models.RuleRange, map[string]any{"min": "not-a-number"})
	assert.ErrorContains(t, err, "invalid min")
}

func TestParseParams_RegexCompilesAnchored(t *testing.T) {
	params, err := ParseParams(models.RuleRegex, map[string]any{"pattern": "[A-Z]{3}"})
	require.NoError(t, err)
	require.NotNil(t, params.Regex)

	assert.True(t, params.Regex.MatchesStart("NYC"))
	assert.True(t, params.Regex.MatchesStart("NYC-extra"), "prefix match, not full match")
	assert.False(t, params.Regex.MatchesStart("nyc"))
	assert.False(t, params.Regex.MatchesStart(" NYC"), "anchored at the start")
}

func TestParseParams_RegexRejectsMissingOrInvalidPattern(t *testing.T) {
	_, err := ParseParams(models.RuleRegex, map[string]any{})
	assert.ErrorContains(t, err, "requires a pattern")

	_, err = ParseParams(models.RuleRegex, map[string]any{"pattern": "["})
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestParseParams_LengthRules(t *testing.T) {
	params, err := ParseParams(models.RuleMinLength, map[string]any{"n": "3"})
	require.NoError(t, err)
	assert.Equal(t, 3, params.MinLength.N)

	params, err = ParseParams(models.RuleMaxLength, map[string]any{"n": 8})
	require.NoError(t, err)
	assert.Equal(t, 8, params.MaxLength.N)

	_, err = ParseParams(models.RuleMinLength, map[string]any{})
	assert.ErrorContains(t, err, "requires n")

	_, err = ParseParams(models.RuleMaxLength, map[string]any{"n": -1})
	assert.ErrorContains(t, err, "non-negative")
}

func TestParseParams_BareRuleTypesTakeNoParams(t *testing.T) {
	for _, ruleType := range []string{models.RuleNotNull, models.RuleUnique} {
		params, err := ParseParams(ruleType, nil)
		require.NoError(t, err, ruleType)
		assert.Equal(t, Params{}, params)
	}
}

func TestParseParams_UnknownRuleType(t *testing.T) {
	_, err := ParseParams("sorted", nil)
	assert.ErrorContains(t, err, `unknown rule type "sorted"`)
}
