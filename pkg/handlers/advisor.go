package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// AnalysisResponse is the advisor's structured verdict on a dataset,
// paired with the score of the profile it judged.
type AnalysisResponse struct {
	DatasetID    uuid.UUID               `json:"dataset_id"`
	QualityScore float64                 `json:"quality_score"`
	AIAnalysis   *models.QualityAnalysis `json:"ai_analysis"`
}

// SuggestionsResponse carries advisor-suggested validation rules for one
// column.
type SuggestionsResponse struct {
	DatasetID      uuid.UUID               `json:"dataset_id"`
	Column         string                  `json:"column"`
	SuggestedRules *models.RuleSuggestions `json:"suggested_rules"`
}

// ExplanationResponse is a plain-language explanation of one stored issue.
type ExplanationResponse struct {
	DatasetID   uuid.UUID `json:"dataset_id"`
	IssueID     uuid.UUID `json:"issue_id"`
	Explanation string    `json:"explanation"`
}

// AdvisorHandler handles the AI advisory endpoints. The advisor is optional:
// without an API key every endpoint answers 503 and the rest of the engine
// is unaffected.
type AdvisorHandler struct {
	advisor services.AdvisorService
	quality services.QualityService
	logger  *zap.Logger
}

// NewAdvisorHandler creates a new AdvisorHandler.
func NewAdvisorHandler(advisor services.AdvisorService, quality services.QualityService, logger *zap.Logger) *AdvisorHandler {
	return &AdvisorHandler{advisor: advisor, quality: quality, logger: logger}
}

// RegisterRoutes registers the advisor handler's routes on the given mux.
func (h *AdvisorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasets/{did}/ai-analyze", h.Analyze)
	mux.HandleFunc("POST /api/datasets/{did}/ai-suggest-rules/{column}", h.SuggestRules)
	mux.HandleFunc("POST /api/datasets/{did}/issues/{iid}/explain", h.ExplainIssue)
}

// Analyze handles POST /api/datasets/{did}/ai-analyze.
// Sends the dataset's latest profile and issues to the advisor and returns
// its structured verdict.
func (h *AdvisorHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.quality.GetLatestProfile(r.Context(), datasetID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNoProfile):
			if err := ErrorResponse(w, http.StatusNotFound, "profile_not_found", "Run POST /datasets/{id}/profile first!"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to get profile for analysis",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get profile"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	analysis, err := h.advisor.AnalyzeQuality(r.Context(), datasetID)
	if err != nil {
		h.writeAdvisoryError(w, err, "Dataset not found", "AI analysis failed")
		return
	}

	response := AnalysisResponse{
		DatasetID:    datasetID,
		QualityScore: profile.QualityScore,
		AIAnalysis:   analysis,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode analysis response", zap.Error(err))
	}
}

// SuggestRules handles POST /api/datasets/{did}/ai-suggest-rules/{column}.
func (h *AdvisorHandler) SuggestRules(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}
	column := r.PathValue("column")

	suggestions, err := h.advisor.SuggestRules(r.Context(), datasetID, column)
	if err != nil {
		h.writeAdvisoryError(w, err, "Dataset or column not found", "AI rule suggestion failed")
		return
	}

	response := SuggestionsResponse{
		DatasetID:      datasetID,
		Column:         column,
		SuggestedRules: suggestions,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode suggestions response", zap.Error(err))
	}
}

// ExplainIssue handles POST /api/datasets/{did}/issues/{iid}/explain.
func (h *AdvisorHandler) ExplainIssue(w http.ResponseWriter, r *http.Request) {
	datasetID, issueID, ok := ParseDatasetAndIssueIDs(w, r, h.logger)
	if !ok {
		return
	}

	explanation, err := h.advisor.ExplainStoredIssue(r.Context(), datasetID, issueID)
	if err != nil {
		h.writeAdvisoryError(w, err, "Dataset or issue not found", "AI issue explanation failed")
		return
	}

	response := ExplanationResponse{
		DatasetID:   datasetID,
		IssueID:     issueID,
		Explanation: explanation,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode explanation response", zap.Error(err))
	}
}

// writeAdvisoryError maps advisory failures to responses. A missing API key
// is 503, missing records are 404, and upstream call failures are 502 so
// clients can tell engine problems from advisor problems.
func (h *AdvisorHandler) writeAdvisoryError(w http.ResponseWriter, err error, notFoundMessage, logMessage string) {
	switch {
	case errors.Is(err, apperrors.ErrAIUnavailable):
		if err := ErrorResponse(w, http.StatusServiceUnavailable, "ai_unavailable", "AI advisory is not configured. Set AI_API_KEY to enable advisory endpoints."); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrNoProfile):
		if err := ErrorResponse(w, http.StatusNotFound, "profile_not_found", "Run POST /datasets/{id}/profile first!"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	case errors.Is(err, apperrors.ErrNotFound):
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", notFoundMessage); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	default:
		h.logger.Error(logMessage, zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadGateway, "advisory_failed", "AI advisory call failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
