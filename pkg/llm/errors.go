package llm

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ErrorType indicates which part of the AI configuration caused the error.
type ErrorType string

const (
	ErrorTypeEndpoint    ErrorType = "endpoint"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeModel       ErrorType = "model"
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a classified LLM failure. Retryable separates transient provider
// trouble from misconfiguration that no retry will fix.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // 0 when the provider reported none
	Model      string // configured model, when known
	Endpoint   string // configured endpoint, when known
}

func (e *Error) Error() string {
	parts := []string{string(e.Type)}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if e.Endpoint != "" {
		// Only the host is echoed back; the full URL can carry path
		// segments or query params that do not belong in logs.
		if host := endpointHost(e.Endpoint); host != "" {
			parts = append(parts, fmt.Sprintf("endpoint=%s", host))
		}
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// endpointHost extracts the host portion of an endpoint URL. Falls back
// to the raw string when it does not parse as a URL.
func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable satisfies the retry package's retryability check without
// that package importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError builds a classified error around its cause.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// NewErrorWithContext is NewError plus the request context a caller of the
// client has at hand: model, endpoint, and status code.
func NewErrorWithContext(errType ErrorType, message string, retryable bool, cause error, model, endpoint string, statusCode int) *Error {
	return &Error{
		Type:       errType,
		Message:    message,
		Retryable:  retryable,
		Cause:      cause,
		Model:      model,
		Endpoint:   endpoint,
		StatusCode: statusCode,
	}
}

// statusCodePattern matches a three-digit status code only when it follows
// an explicit HTTP/status/code marker, so bare numbers in error text (row
// counts, ports, durations) are never misread as statuses.
var statusCodePattern = regexp.MustCompile(`(?i)\b(?:http|status|code):?\s+(\d{3})\b`)

// extractStatusCode pulls an HTTP status code out of an error string.
// Returns 0 when no marker-prefixed code is present.
func extractStatusCode(errStr string) int {
	m := statusCodePattern.FindStringSubmatch(errStr)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil || code < 100 || code > 599 {
		return 0
	}
	return code
}

// ClassifyError maps a raw provider error onto an ErrorType and a retry
// decision. Already-classified errors pass through unchanged, wrapped or
// not. The match order matters: "context canceled" must win over the
// broader timeout match, and the model check over the bare 404 check.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)
	code := extractStatusCode(errStr)

	classified := func(errType ErrorType, message string, retryable bool) *Error {
		e := NewError(errType, message, retryable, err)
		e.StatusCode = code
		return e
	}

	switch {
	case code == 401 || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return classified(ErrorTypeAuth, "authentication failed", false)

	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist") || strings.Contains(lower, "decommissioned")):
		return classified(ErrorTypeModel, "model not found", false)

	case code == 404:
		return classified(ErrorTypeEndpoint, "endpoint not found", false)

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return classified(ErrorTypeEndpoint, "connection failed", true)

	// The caller gave up; retrying on their behalf would be wrong.
	case strings.Contains(lower, "context canceled"):
		return classified(ErrorTypeUnknown, "request cancelled", false)

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return classified(ErrorTypeEndpoint, "request timeout", true)

	case code == 429 || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return classified(ErrorTypeRateLimited, "rate limited", true)

	case code >= 500:
		return classified(ErrorTypeEndpoint, "server error", true)

	default:
		return classified(ErrorTypeUnknown, "llm error", false)
	}
}

// IsRetryable reports whether err carries a retryable classification.
// Unstructured errors are treated as terminal.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the classification from an error, defaulting to
// unknown for unstructured errors.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
