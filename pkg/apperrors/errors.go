package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrHasVersions   = errors.New("dataset has dependent versions")
	ErrInvalidRule   = errors.New("invalid validation rule")
	ErrAIUnavailable = errors.New("AI advisor not configured")
	ErrMalformedCSV  = errors.New("malformed CSV")
	ErrNoProfile     = errors.New("no profile generated yet")
)
