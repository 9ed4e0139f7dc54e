// Package rules evaluates declarative column rules against a table and
// reports violations with row-level evidence. Rule parameters are validated
// into typed form at rule creation, so configuration mistakes surface before
// any data is read.
package rules

import (
	"fmt"
	"regexp"

	"github.com/spf13/cast"

	"github.com/veracity-data/veracity-engine/pkg/models"
)

// Params is the typed form of a rule's parameter bag. At most one of the
// kind-specific fields is set, matching the rule type; not_null and unique
// carry none.
type Params struct {
	Range     *RangeParams
	Regex     *RegexParams
	MinLength *LengthParams
	MaxLength *LengthParams
}

// RangeParams bounds a numeric column. At least one bound is set.
type RangeParams struct {
	Min *float64
	Max *float64
}

// RegexParams holds a compiled pattern, matched at the start of the value.
type RegexParams struct {
	Pattern string
	re      *regexp.Regexp
}

// MatchesStart reports whether s matches the pattern anchored at its start.
func (p *RegexParams) MatchesStart(s string) bool {
	return p.re.MatchString(s)
}

// LengthParams bounds the character length of stringified values.
type LengthParams struct {
	N int
}

// ParseParams validates a raw parameter bag against a rule type. Inputs
// arrive as loose JSON (numbers may be strings, ints or floats), so values
// are coerced rather than type-asserted.
func ParseParams(ruleType string, raw map[string]any) (Params, error) {
	switch ruleType {
	case models.RuleNotNull, models.RuleUnique:
		return Params{}, nil

	case models.RuleRange:
		var rangeParams RangeParams
		if v, ok := raw["min"]; ok && v != nil {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return Params{}, fmt.Errorf("range rule: invalid min: %w", err)
			}
			rangeParams.Min = &f
		}
		if v, ok := raw["max"]; ok && v != nil {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return Params{}, fmt.Errorf("range rule: invalid max: %w", err)
			}
			rangeParams.Max = &f
		}
		if rangeParams.Min == nil && rangeParams.Max == nil {
			return Params{}, fmt.Errorf("range rule requires at least one of min, max")
		}
		return Params{Range: &rangeParams}, nil

	case models.RuleRegex:
		pattern, err := cast.ToStringE(raw["pattern"])
		if err != nil || pattern == "" {
			return Params{}, fmt.Errorf("regex rule requires a pattern")
		}
		re, err := regexp.Compile(`\A(?:` + pattern + `)`)
		if err != nil {
			return Params{}, fmt.Errorf("regex rule: invalid pattern: %w", err)
		}
		return Params{Regex: &RegexParams{Pattern: pattern, re: re}}, nil

	case models.RuleMinLength:
		n, err := lengthParam(raw)
		if err != nil {
			return Params{}, fmt.Errorf("min_length rule: %w", err)
		}
		return Params{MinLength: &LengthParams{N: n}}, nil

	case models.RuleMaxLength:
		n, err := lengthParam(raw)
		if err != nil {
			return Params{}, fmt.Errorf("max_length rule: %w", err)
		}
		return Params{MaxLength: &LengthParams{N: n}}, nil

	default:
		return Params{}, fmt.Errorf("unknown rule type %q", ruleType)
	}
}

func lengthParam(raw map[string]any) (int, error) {
	v, ok := raw["n"]
	if !ok || v == nil {
		return 0, fmt.Errorf("requires n")
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("invalid n: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("n must be non-negative")
	}
	return n, nil
}
