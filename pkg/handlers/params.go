package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseDatasetID extracts and validates the dataset ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: did
func ParseDatasetID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "did", "invalid_dataset_id", "Invalid dataset ID format", logger)
}

// ParseRuleID extracts and validates the validation rule ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: rid
func ParseRuleID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "rid", "invalid_rule_id", "Invalid rule ID format", logger)
}

// ParseIssueID extracts and validates the quality issue ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false on
// error (after writing an error response).
// Expects path parameter: iid
func ParseIssueID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "iid", "invalid_issue_id", "Invalid issue ID format", logger)
}

// ParseOtherDatasetID extracts and validates the comparison target dataset ID
// from the request path. Returns the parsed UUID and true on success, or
// uuid.Nil and false on error (after writing an error response).
// Expects path parameter: oid
func ParseOtherDatasetID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "oid", "invalid_dataset_id", "Invalid dataset ID format", logger)
}

// ParseDatasetAndRuleIDs extracts and validates both dataset and rule IDs.
// Returns both UUIDs and true on success, or uuid.Nil values and false on error.
// Expects path parameters: did, rid
func ParseDatasetAndRuleIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	datasetID, ok := ParseDatasetID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	ruleID, ok := ParseRuleID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return datasetID, ruleID, true
}

// ParseDatasetAndIssueIDs extracts and validates both dataset and issue IDs.
// Returns both UUIDs and true on success, or uuid.Nil values and false on error.
// Expects path parameters: did, iid
func ParseDatasetAndIssueIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	datasetID, ok := ParseDatasetID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	issueID, ok := ParseIssueID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return datasetID, issueID, true
}

// ParseComparisonIDs extracts and validates the two dataset IDs of a
// comparison request. Returns both UUIDs and true on success, or uuid.Nil
// values and false on error.
// Expects path parameters: did, oid
func ParseComparisonIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	datasetID, ok := ParseDatasetID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	otherID, ok := ParseOtherDatasetID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return datasetID, otherID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
