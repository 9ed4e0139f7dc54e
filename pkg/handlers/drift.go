package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// DriftHandler handles dataset comparison endpoints.
type DriftHandler struct {
	service services.DriftService
	logger  *zap.Logger
}

// NewDriftHandler creates a new DriftHandler.
func NewDriftHandler(service services.DriftService, logger *zap.Logger) *DriftHandler {
	return &DriftHandler{service: service, logger: logger}
}

// RegisterRoutes registers the drift handler's routes on the given mux.
func (h *DriftHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/datasets/{did}/compare/{oid}", h.Compare)
}

// Compare handles GET /api/datasets/{did}/compare/{oid}.
// Treats {did} as the old version and {oid} as the new one and reports
// schema drift, quality drift, and an overall drift score.
func (h *DriftHandler) Compare(w http.ResponseWriter, r *http.Request) {
	datasetID, otherID, ok := ParseComparisonIDs(w, r, h.logger)
	if !ok {
		return
	}

	comparison, err := h.service.Compare(r.Context(), datasetID, otherID)
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
			h.logger.Error("Failed to compare datasets",
				zap.String("dataset_id", datasetID.String()),
				zap.String("other_id", otherID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to compare datasets"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, comparison); err != nil {
		h.logger.Error("Failed to encode comparison response", zap.Error(err))
	}
}
