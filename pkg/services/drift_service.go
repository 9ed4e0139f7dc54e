package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/drift"
	"github.com/veracity-data/veracity-engine/pkg/metrics"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
)

// DatasetRef identifies one side of a comparison in the response.
type DatasetRef struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Version int       `json:"version"`
}

// Comparison is the full result of comparing two dataset versions.
type Comparison struct {
	DatasetA   DatasetRef          `json:"dataset_a"`
	DatasetB   DatasetRef          `json:"dataset_b"`
	DriftScore *models.DriftScore  `json:"drift_score"`
	Report     *models.DriftReport `json:"comparison"`
}

// DriftService defines the interface for dataset comparison.
type DriftService interface {
	// Compare treats datasetA as the old version and datasetB as the new
	// one and computes schema and quality drift between them.
	Compare(ctx context.Context, datasetA, datasetB uuid.UUID) (*Comparison, error)
}

// driftService implements DriftService.
type driftService struct {
	datasets repositories.DatasetRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewDriftService creates a new drift service.
func NewDriftService(datasets repositories.DatasetRepository, m *metrics.Metrics, logger *zap.Logger) DriftService {
	return &driftService{
		datasets: datasets,
		metrics:  m,
		logger:   logger.Named("drift_service"),
	}
}

// Compare computes drift from datasetA (old) to datasetB (new).
func (s *driftService) Compare(ctx context.Context, datasetA, datasetB uuid.UUID) (*Comparison, error) {
	oldDataset, err := s.datasets.Get(ctx, datasetA)
	if err != nil {
		return nil, err
	}
	newDataset, err := s.datasets.Get(ctx, datasetB)
	if err != nil {
		return nil, err
	}

	oldTable, err := loadStoredTable(oldDataset)
	if err != nil {
		return nil, err
	}
	newTable, err := loadStoredTable(newDataset)
	if err != nil {
		return nil, err
	}

	report := drift.Compare(oldTable, newTable)
	score := drift.Score(report)

	s.metrics.RecordComparisonRun()

	s.logger.Info("Drift comparison completed",
		zap.String("dataset_a", oldDataset.ID.String()),
		zap.String("dataset_b", newDataset.ID.String()),
		zap.String("overall", score.Overall),
		zap.Int("issues", score.IssuesCount))

	return &Comparison{
		DatasetA:   DatasetRef{ID: oldDataset.ID, Name: oldDataset.Name, Version: oldDataset.Version},
		DatasetB:   DatasetRef{ID: newDataset.ID, Name: newDataset.Name, Version: newDataset.Version},
		DriftScore: score,
		Report:     report,
	}, nil
}

// Ensure driftService implements DriftService at compile time.
var _ DriftService = (*driftService)(nil)
