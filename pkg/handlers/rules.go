package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/middleware"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// CreateRuleRequest is the body of a rule creation request.
type CreateRuleRequest struct {
	ColumnName string         `json:"column_name"`
	RuleType   string         `json:"rule_type"`
	Parameters map[string]any `json:"parameters"`
}

// RuleListResponse lists a dataset's validation rules in creation order.
type RuleListResponse struct {
	DatasetID uuid.UUID                `json:"dataset_id"`
	Rules     []*models.ValidationRule `json:"rules"`
}

// DeleteRuleResponse confirms a rule deletion.
type DeleteRuleResponse struct {
	Message string `json:"message"`
}

// RulesHandler handles validation rule management and validation runs.
type RulesHandler struct {
	service         services.ValidationService
	validateLimiter *middleware.RateLimiter
	logger          *zap.Logger
}

// NewRulesHandler creates a new RulesHandler. The limiter guards the
// validation run endpoint; nil disables it.
func NewRulesHandler(service services.ValidationService, validateLimiter *middleware.RateLimiter, logger *zap.Logger) *RulesHandler {
	return &RulesHandler{
		service:         service,
		validateLimiter: validateLimiter,
		logger:          logger,
	}
}

// RegisterRoutes registers the rules handler's routes on the given mux.
func (h *RulesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasets/{did}/rules", h.Create)
	mux.HandleFunc("GET /api/datasets/{did}/rules", h.List)
	mux.HandleFunc("DELETE /api/datasets/{did}/rules/{rid}", h.Delete)
	mux.Handle("POST /api/datasets/{did}/validate", limited(h.validateLimiter, h.Validate))
}

// Create handles POST /api/datasets/{did}/rules.
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	rule, err := h.service.CreateRule(r.Context(), datasetID, req.ColumnName, req.RuleType, req.Parameters)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidRule):
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_rule", err.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to create rule",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create rule"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, rule); err != nil {
		h.logger.Error("Failed to encode rule response", zap.Error(err))
	}
}

// List handles GET /api/datasets/{did}/rules.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list rules",
			zap.String("dataset_id", datasetID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list rules"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if rules == nil {
		rules = []*models.ValidationRule{}
	}
	response := RuleListResponse{DatasetID: datasetID, Rules: rules}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode rule list", zap.Error(err))
	}
}

// Delete handles DELETE /api/datasets/{did}/rules/{rid}.
func (h *RulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	datasetID, ruleID, ok := ParseDatasetAndRuleIDs(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.DeleteRule(r.Context(), datasetID, ruleID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Rule not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to delete rule",
			zap.String("dataset_id", datasetID.String()),
			zap.String("rule_id", ruleID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to delete rule"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := DeleteRuleResponse{Message: fmt.Sprintf("Rule %s deleted successfully", ruleID)}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// Validate handles POST /api/datasets/{did}/validate.
// Applies every stored rule to the dataset's current file.
func (h *RulesHandler) Validate(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	report, err := h.service.Validate(r.Context(), datasetID)
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
			h.logger.Error("Failed to validate dataset",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to validate dataset"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode validation report", zap.Error(err))
	}
}
