package handlers

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/middleware"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// DatasetSummary is the compact dataset representation used in version
// listings and version creation responses.
type DatasetSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Version      int       `json:"version"`
	TotalRows    int       `json:"total_rows"`
	TotalColumns int       `json:"total_columns"`
}

// VersionEntry is one dataset version in a chain listing.
type VersionEntry struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Version      int       `json:"version"`
	TotalRows    int       `json:"total_rows"`
	TotalColumns int       `json:"total_columns"`
	CreatedAt    time.Time `json:"created_at"`
}

// VersionListResponse lists every version in a dataset's chain.
type VersionListResponse struct {
	DatasetID uuid.UUID      `json:"dataset_id"`
	RootID    uuid.UUID      `json:"root_id"`
	Versions  []VersionEntry `json:"versions"`
}

// NewVersionResponse confirms a new dataset version.
type NewVersionResponse struct {
	Message    string         `json:"message"`
	RootID     uuid.UUID      `json:"root_id"`
	NewDataset DatasetSummary `json:"new_dataset"`
}

// DeleteDatasetResponse confirms a dataset deletion.
type DeleteDatasetResponse struct {
	Message   string    `json:"message"`
	DeletedID uuid.UUID `json:"deleted_id"`
}

// DatasetsHandler handles dataset upload, versioning, and lifecycle endpoints.
type DatasetsHandler struct {
	service       services.DatasetService
	uploadLimiter *middleware.RateLimiter
	screenLimiter *middleware.RateLimiter
	logger        *zap.Logger
}

// NewDatasetsHandler creates a new DatasetsHandler. The limiters guard the
// upload and screening endpoints; nil disables them.
func NewDatasetsHandler(service services.DatasetService, uploadLimiter, screenLimiter *middleware.RateLimiter, logger *zap.Logger) *DatasetsHandler {
	return &DatasetsHandler{
		service:       service,
		uploadLimiter: uploadLimiter,
		screenLimiter: screenLimiter,
		logger:        logger,
	}
}

// RegisterRoutes registers the dataset handler's routes on the given mux.
func (h *DatasetsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/datasets", limited(h.uploadLimiter, h.Upload))
	mux.HandleFunc("GET /api/datasets", h.List)
	mux.HandleFunc("GET /api/datasets/{did}", h.Get)
	mux.HandleFunc("DELETE /api/datasets/{did}", h.Delete)
	mux.Handle("POST /api/datasets/{did}/versions", limited(h.uploadLimiter, h.UploadVersion))
	mux.HandleFunc("GET /api/datasets/{did}/versions", h.ListVersions)
	mux.Handle("POST /api/datasets/security-check", limited(h.screenLimiter, h.SecurityCheck))
}

// Upload handles POST /api/datasets.
// Screens and stores a CSV file as a new root dataset.
func (h *DatasetsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	content, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	dataset, err := h.service.Upload(r.Context(), filename, content, clientIP(r))
	if err != nil {
		h.writeUploadError(w, err, "Failed to upload dataset")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, dataset); err != nil {
		h.logger.Error("Failed to encode dataset response", zap.Error(err))
	}
}

// List handles GET /api/datasets.
// Returns all stored datasets, newest first.
func (h *DatasetsHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list datasets", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list datasets"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if datasets == nil {
		datasets = []*models.Dataset{}
	}
	if err := WriteJSON(w, http.StatusOK, datasets); err != nil {
		h.logger.Error("Failed to encode dataset list", zap.Error(err))
	}
}

// Get handles GET /api/datasets/{did}.
func (h *DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	dataset, err := h.service.Get(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get dataset",
			zap.String("dataset_id", datasetID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get dataset"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, dataset); err != nil {
		h.logger.Error("Failed to encode dataset response", zap.Error(err))
	}
}

// Delete handles DELETE /api/datasets/{did}.
// Refuses while other versions still depend on the dataset.
func (h *DatasetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	dataset, err := h.service.Delete(r.Context(), datasetID)
	if err != nil {
		var versionsErr *services.HasVersionsError
		switch {
		case errors.As(err, &versionsErr):
			if err := ErrorResponse(w, http.StatusBadRequest, "has_versions", versionsErr.Error()); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		case errors.Is(err, apperrors.ErrNotFound):
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		default:
			h.logger.Error("Failed to delete dataset",
				zap.String("dataset_id", datasetID.String()),
				zap.Error(err))
			if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to delete dataset"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
		}
		return
	}

	response := DeleteDatasetResponse{
		Message:   fmt.Sprintf("Dataset '%s' deleted successfully", dataset.Name),
		DeletedID: dataset.ID,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// UploadVersion handles POST /api/datasets/{did}/versions.
// Screens and stores a new version in the chain of the given dataset.
func (h *DatasetsHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	content, _, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	dataset, err := h.service.UploadVersion(r.Context(), datasetID, content, clientIP(r))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.writeUploadError(w, err, "Failed to upload dataset version")
		return
	}

	rootID := dataset.ID
	if dataset.ParentID != nil {
		rootID = *dataset.ParentID
	}
	response := NewVersionResponse{
		Message: fmt.Sprintf("Version %d created", dataset.Version),
		RootID:  rootID,
		NewDataset: DatasetSummary{
			ID:           dataset.ID,
			Name:         dataset.Name,
			Version:      dataset.Version,
			TotalRows:    dataset.TotalRows,
			TotalColumns: dataset.TotalColumns,
		},
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to encode version response", zap.Error(err))
	}
}

// ListVersions handles GET /api/datasets/{did}/versions.
// Returns every version in the dataset's chain, oldest first.
func (h *DatasetsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	rootID, versions, err := h.service.ListVersions(r.Context(), datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Dataset not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to list dataset versions",
			zap.String("dataset_id", datasetID.String()),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list dataset versions"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	response := VersionListResponse{
		DatasetID: datasetID,
		RootID:    rootID,
		Versions:  make([]VersionEntry, 0, len(versions)),
	}
	for _, v := range versions {
		response.Versions = append(response.Versions, VersionEntry{
			ID:           v.ID,
			Name:         v.Name,
			Version:      v.Version,
			TotalRows:    v.TotalRows,
			TotalColumns: v.TotalColumns,
			CreatedAt:    v.CreatedAt,
		})
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode version list", zap.Error(err))
	}
}

// SecurityCheck handles POST /api/datasets/security-check.
// Runs the full screening pipeline on a file without storing anything.
func (h *DatasetsHandler) SecurityCheck(w http.ResponseWriter, r *http.Request) {
	content, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	report := h.service.Screen(filename, content, clientIP(r))
	if err := WriteJSON(w, http.StatusOK, report); err != nil {
		h.logger.Error("Failed to encode screening report", zap.Error(err))
	}
}

// readUpload pulls the "file" part out of a multipart request. On failure it
// writes the 400 response and returns ok=false.
func (h *DatasetsHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request must be multipart/form-data with a 'file' field"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Could not read uploaded file"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, "", false
	}

	return content, header.Filename, true
}

// writeUploadError maps upload failures to responses: screening rejections
// and unparseable CSVs are client errors, everything else is a 500.
func (h *DatasetsHandler) writeUploadError(w http.ResponseWriter, err error, logMessage string) {
	var screenErr *ingest.ScreeningError
	switch {
	case errors.As(err, &screenErr):
		RejectionResponse(w, screenErr, h.logger)
	case errors.Is(err, apperrors.ErrMalformedCSV):
		if err := ErrorResponse(w, http.StatusBadRequest, "malformed_csv", err.Error()); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	default:
		h.logger.Error(logMessage, zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", logMessage); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}

// clientIP extracts the client address without the port for audit logging.
// Falls back to the raw RemoteAddr when it is not host:port shaped.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
