package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// ProfileRunResponse is the outcome of one profiling run: the fresh profile
// plus the issues extracted from it.
type ProfileRunResponse struct {
	DatasetID    uuid.UUID              `json:"dataset_id"`
	QualityScore float64                `json:"quality_score"`
	Profile      *models.DatasetProfile `json:"profile"`
	Anomalies    *models.AnomalyReport  `json:"anomalies"`
	Issues       []*models.QualityIssue `json:"issues"`
}

// StoredProfileResponse is the latest persisted profile of a dataset.
type StoredProfileResponse struct {
	DatasetID    uuid.UUID             `json:"dataset_id"`
	QualityScore float64               `json:"quality_score"`
	CreatedAt    time.Time             `json:"created_at"`
	Metrics      models.ProfileMetrics `json:"metrics"`
}

// IssueEntry is one quality issue in a listing.
type IssueEntry struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Severity     string    `json:"severity"`
	Column       string    `json:"column,omitempty"`
	Description  string    `json:"description"`
	AffectedRows int       `json:"affected_rows"`
}

// IssueListResponse lists the findings of a dataset's last profiling run.
type IssueListResponse struct {
	DatasetID   uuid.UUID    `json:"dataset_id"`
	TotalIssues int          `json:"total_issues"`
	Issues      []IssueEntry `json:"issues"`
}

// QualityHandler handles profiling and issue listing endpoints.
type QualityHandler struct {
	service services.QualityService
	logger  *zap.Logger
}

// NewQualityHandler creates a new QualityHandler.
func NewQualityHandler(service services.QualityService, logger *zap.Logger) *QualityHandler {
	return &QualityHandler{service: service, logger: logger}
}

// RegisterRoutes registers the quality handler's routes on the given mux.
func (h *QualityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasets/{did}/profile", h.GenerateProfile)
	mux.HandleFunc("GET /api/datasets/{did}/profile", h.GetProfile)
	mux.HandleFunc("GET /api/datasets/{did}/issues", h.ListIssues)
}

// GenerateProfile handles POST /api/datasets/{did}/profile.
// Profiles the dataset's stored file, persists the result, and replaces the
// dataset's issue list with the run's findings.
func (h *QualityHandler) GenerateProfile(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	profile, issues, err := h.service.GenerateProfile(r.Context(), datasetID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrMalformedCSV):
			if err := ErrorResponse(w, http.StatusBadRequest, "malformed_csv", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to generate profile",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to generate profile"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	if issues == nil {
		issues = []*models.QualityIssue{}
	}
	response := ProfileRunResponse{
		DatasetID:    datasetID,
		QualityScore: profile.QualityScore,
		Profile:      profile.Metrics.Profile,
		Anomalies:    profile.Metrics.Anomalies,
		Issues:       issues,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode profile response", zap.Error(err))
	}
}

// GetProfile handles GET /api/datasets/{did}/profile.
// Returns the latest stored profile without re-reading the file.
func (h *QualityHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.service.GetLatestProfile(r.Context(), datasetID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNoProfile):
			if err := ErrorResponse(w, http.StatusNotFound, "profile_not_found", "Profile not found. Run POST /profile first."); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to get profile",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get profile"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	response := StoredProfileResponse{
		DatasetID:    datasetID,
		QualityScore: profile.QualityScore,
		CreatedAt:    profile.CreatedAt,
		Metrics:      profile.Metrics,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode profile response", zap.Error(err))
	}
}

// ListIssues handles GET /api/datasets/{did}/issues.
func (h *QualityHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	issues, err := h.service.ListIssues(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list issues",
			zap.String("dataset_id", datasetID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list issues"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := IssueListResponse{
		DatasetID:   datasetID,
		TotalIssues: len(issues),
		Issues:      make([]IssueEntry, 0, len(issues)),
	}
	for _, issue := range issues {
		response.Issues = append(response.Issues, IssueEntry{
			ID:           issue.ID,
			Type:         issue.IssueType,
			Severity:     issue.Severity,
			Column:       issue.ColumnName,
			Description:  issue.Description,
			AffectedRows: issue.AffectedRows,
		})
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode issue list", zap.Error(err))
	}
}
