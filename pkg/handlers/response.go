package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/middleware"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// RejectionResponse writes the structured 400 body for an upload that failed
// screening. The body tells the client what was wrong and how to fix it.
func RejectionResponse(w http.ResponseWriter, screenErr *ingest.ScreeningError, logger *zap.Logger) {
	if err := WriteJSON(w, http.StatusBadRequest, screenErr.Detail); err != nil {
		logger.Error("Failed to write rejection response", zap.Error(err))
	}
}

// limited wraps an endpoint with a per-client rate limiter when one is
// configured. Tests construct handlers without limiters.
func limited(rl *middleware.RateLimiter, fn http.HandlerFunc) http.Handler {
	if rl == nil {
		return fn
	}
	return rl.Middleware(fn)
}
