package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// reasoningPrefix strips the <think>...</think> preamble that reasoning
// models emit before the answer proper.
var reasoningPrefix = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// ExtractJSON pulls the first JSON document out of a chat completion that may
// wrap it in reasoning tags, markdown fences, or prose. Prompts ask for bare
// JSON but models rarely comply reliably.
func ExtractJSON(response string) (string, error) {
	cleaned := reasoningPrefix.ReplaceAllString(response, "")

	for _, open := range candidateOrder(cleaned) {
		if doc, ok := firstBalanced(cleaned, open); ok && json.Valid([]byte(doc)) {
			return doc, nil
		}
	}

	// The whole response may already be a bare scalar or document.
	if trimmed := strings.TrimSpace(cleaned); json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}
	return "", fmt.Errorf("no valid JSON found in response")
}

// candidateOrder returns the bracket kinds to try, earlier opener first. An
// opener that doesn't yield valid JSON (prose brackets, say) falls through to
// the other kind.
func candidateOrder(s string) []byte {
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')
	switch {
	case obj < 0 && arr < 0:
		return nil
	case arr < 0 || (obj >= 0 && obj < arr):
		return []byte{'{', '['}
	default:
		return []byte{'[', '{'}
	}
}

// firstBalanced returns the first balanced bracket structure opening with
// open. String literals and escapes are honored so braces inside values
// don't skew the depth count.
func firstBalanced(s string, open byte) (string, bool) {
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseJSONResponse extracts JSON from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return result, nil
}
