// Package services implements the business logic of the profiling engine:
// dataset lifecycle, quality profiling, drift comparison, rule validation,
// AI advisory, and profile retention.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/audit"
	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/metrics"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

// HasVersionsError is returned when deleting a dataset that still has
// dependent versions. The message is rendered to the client verbatim.
type HasVersionsError struct {
	Count int
	Names []string
}

func (e *HasVersionsError) Error() string {
	return fmt.Sprintf("Cannot delete: %d version(s) depend on this dataset (%s). Delete them first.",
		e.Count, strings.Join(e.Names, ", "))
}

// Is makes errors.Is(err, apperrors.ErrHasVersions) work.
func (e *HasVersionsError) Is(target error) bool {
	return target == apperrors.ErrHasVersions
}

// DatasetService defines the interface for dataset lifecycle operations.
type DatasetService interface {
	// Upload screens, stores, and registers a new root dataset.
	Upload(ctx context.Context, filename string, content []byte, clientIP string) (*models.Dataset, error)

	// UploadVersion screens and stores a new version in the chain the
	// parent dataset belongs to. The new version is named
	// <root-stem>_v<N>.csv and its parent is the chain root.
	UploadVersion(ctx context.Context, parentID uuid.UUID, content []byte, clientIP string) (*models.Dataset, error)

	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)
	List(ctx context.Context) ([]*models.Dataset, error)

	// ListVersions returns the chain root ID and every version in the
	// chain of the given dataset, ordered by version.
	ListVersions(ctx context.Context, id uuid.UUID) (uuid.UUID, []*models.Dataset, error)

	// Delete removes a dataset. It refuses with HasVersionsError while
	// dependent versions exist, before touching the row or the file.
	Delete(ctx context.Context, id uuid.UUID) (*models.Dataset, error)

	// Screen runs the screening pipeline without storing anything.
	Screen(filename string, content []byte, clientIP string) *ingest.Report

	// LoadTable reads a dataset's stored file back into a table.
	LoadTable(ctx context.Context, id uuid.UUID) (*models.Dataset, *tabular.Table, error)
}

// datasetService implements DatasetService.
type datasetService struct {
	repo      repositories.DatasetRepository
	screener  *ingest.Screener
	auditor   *audit.SecurityAuditor
	metrics   *metrics.Metrics
	uploadDir string
	logger    *zap.Logger
}

// NewDatasetService creates a new dataset service. uploadDir must exist.
func NewDatasetService(
	repo repositories.DatasetRepository,
	screener *ingest.Screener,
	auditor *audit.SecurityAuditor,
	m *metrics.Metrics,
	uploadDir string,
	logger *zap.Logger,
) DatasetService {
	return &datasetService{
		repo:      repo,
		screener:  screener,
		auditor:   auditor,
		metrics:   m,
		uploadDir: uploadDir,
		logger:    logger.Named("dataset_service"),
	}
}

// Upload screens, stores, and registers a new root dataset.
func (s *datasetService) Upload(ctx context.Context, filename string, content []byte, clientIP string) (*models.Dataset, error) {
	table, err := s.screenAndParse(filename, content, clientIP)
	if err != nil {
		return nil, err
	}

	dataset := &models.Dataset{
		ID:           uuid.New(),
		Name:         ingest.SanitizeFilename(filename),
		Version:      1,
		FileHash:     ingest.ComputeFileHash(content),
		SizeBytes:    int64(len(content)),
		TotalRows:    table.RowCount(),
		TotalColumns: table.ColumnCount(),
	}

	return s.store(ctx, dataset, content)
}

// UploadVersion screens and stores a new version in the parent's chain.
func (s *datasetService) UploadVersion(ctx context.Context, parentID uuid.UUID, content []byte, clientIP string) (*models.Dataset, error) {
	parent, err := s.repo.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}

	root := parent
	if parent.ParentID != nil {
		if root, err = s.repo.Get(ctx, *parent.ParentID); err != nil {
			return nil, fmt.Errorf("failed to resolve chain root: %w", err)
		}
	}

	next, err := s.repo.NextVersion(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_v%d.csv", strings.TrimSuffix(root.Name, ".csv"), next)

	// New versions pass the same screening as fresh uploads; a dataset
	// that was clean at v1 does not grandfather dangerous content in at
	// v2.
	table, err := s.screenAndParse(name, content, clientIP)
	if err != nil {
		return nil, err
	}

	rootID := root.ID
	dataset := &models.Dataset{
		ID:           uuid.New(),
		Name:         name,
		Version:      next,
		ParentID:     &rootID,
		FileHash:     ingest.ComputeFileHash(content),
		SizeBytes:    int64(len(content)),
		TotalRows:    table.RowCount(),
		TotalColumns: table.ColumnCount(),
	}

	return s.store(ctx, dataset, content)
}

// Get retrieves a dataset by ID.
func (s *datasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	return s.repo.Get(ctx, id)
}

// List returns all datasets, newest first.
func (s *datasetService) List(ctx context.Context) ([]*models.Dataset, error) {
	return s.repo.List(ctx)
}

// ListVersions returns the chain root and all versions for a dataset.
func (s *datasetService) ListVersions(ctx context.Context, id uuid.UUID) (uuid.UUID, []*models.Dataset, error) {
	dataset, err := s.repo.Get(ctx, id)
	if err != nil {
		return uuid.Nil, nil, err
	}

	rootID := dataset.RootID()
	versions, err := s.repo.ListVersions(ctx, rootID)
	if err != nil {
		return uuid.Nil, nil, err
	}

	return rootID, versions, nil
}

// Delete removes a dataset row and its stored file. Dependent versions are
// checked before anything is destroyed, so a refused delete leaves the
// dataset fully intact.
func (s *datasetService) Delete(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	dataset, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		names := make([]string, 0, len(children))
		for _, child := range children {
			names = append(names, child.Name)
		}
		return nil, &HasVersionsError{Count: len(children), Names: names}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	// The row is gone; a leftover file is an annoyance, not a failure.
	if err := os.Remove(dataset.StoredPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove dataset file",
			zap.String("dataset_id", dataset.ID.String()),
			zap.String("path", dataset.StoredPath),
			zap.Error(err))
	}

	s.logger.Info("Dataset deleted",
		zap.String("dataset_id", dataset.ID.String()),
		zap.String("name", dataset.Name))

	return dataset, nil
}

// Screen runs the screening pipeline for the standalone check endpoint.
func (s *datasetService) Screen(filename string, content []byte, clientIP string) *ingest.Report {
	report := s.screener.Screen(filename, content)

	s.auditor.LogFileScreened(report.Filename, report.SecurityScan.Safe, len(report.SecurityScan.Findings), clientIP)

	return report
}

// LoadTable reads a dataset's stored CSV back into a table.
func (s *datasetService) LoadTable(ctx context.Context, id uuid.UUID) (*models.Dataset, *tabular.Table, error) {
	dataset, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	table, err := loadStoredTable(dataset)
	if err != nil {
		return nil, nil, err
	}

	return dataset, table, nil
}

// screenAndParse rejects unsafe uploads (with audit + metrics) and parses
// accepted content into a table.
func (s *datasetService) screenAndParse(filename string, content []byte, clientIP string) (*tabular.Table, error) {
	if err := s.screener.CheckUpload(filename, content); err != nil {
		var screenErr *ingest.ScreeningError
		if errors.As(err, &screenErr) {
			s.metrics.RecordUploadRejected(screenErr.Step)
			if screenErr.Step == "content" {
				s.auditor.LogInjectionFindings(filename, clientIP, screenErr.Findings)
			} else {
				s.auditor.LogUploadRejected(filename, screenErr.Step, screenErr.Detail.Reason, clientIP)
			}
		}
		return nil, err
	}

	table, err := tabular.ReadCSV(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedCSV, err)
	}

	return table, nil
}

// store writes the file and registers the row, cleaning the file up if the
// insert fails.
func (s *datasetService) store(ctx context.Context, dataset *models.Dataset, content []byte) (*models.Dataset, error) {
	dataset.StoredPath = filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", dataset.ID, dataset.Name))

	if err := os.WriteFile(dataset.StoredPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	if err := s.repo.Create(ctx, dataset); err != nil {
		if rmErr := os.Remove(dataset.StoredPath); rmErr != nil {
			s.logger.Warn("Failed to clean up stored file after insert failure",
				zap.String("path", dataset.StoredPath),
				zap.Error(rmErr))
		}
		return nil, err
	}

	s.logger.Info("Dataset stored",
		zap.String("dataset_id", dataset.ID.String()),
		zap.String("name", dataset.Name),
		zap.Int("version", dataset.Version),
		zap.Int("rows", dataset.TotalRows),
		zap.Int("columns", dataset.TotalColumns))

	return dataset, nil
}

// loadStoredTable reads a dataset's stored CSV into a table. Shared by every
// service that re-reads files.
func loadStoredTable(dataset *models.Dataset) (*tabular.Table, error) {
	content, err := os.ReadFile(dataset.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	table, err := tabular.ReadCSV(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedCSV, err)
	}

	return table, nil
}

// Ensure datasetService implements DatasetService at compile time.
var _ DatasetService = (*datasetService)(nil)
