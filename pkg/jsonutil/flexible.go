// Package jsonutil coerces loosely typed JSON scalars. LLM responses asked
// for strings occasionally carry bare numbers or booleans instead; these
// helpers absorb that drift rather than failing the whole parse.
package jsonutil

import (
	"encoding/json"
	"fmt"
)

// FlexibleString converts a raw JSON value to a string. Numbers and booleans
// are formatted, null and empty input become "".
func FlexibleString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return fmt.Sprintf("%t", b)
	}

	return string(raw)
}

// FlexibleStringSlice converts a raw JSON array of mixed scalars to strings.
// Null, empty, and non-array input yield nil so one malformed field degrades
// to empty instead of discarding the rest of the document.
func FlexibleStringSlice(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := FlexibleString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
