package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/metrics"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/profiler"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
)

// QualityService defines the interface for profiling operations.
type QualityService interface {
	// GenerateProfile profiles a dataset, persists the profile, and swaps
	// the dataset's issue list for the run's findings.
	GenerateProfile(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, []*models.QualityIssue, error)

	// GetLatestProfile returns the newest stored profile for a dataset.
	// Returns apperrors.ErrNoProfile when the dataset was never profiled.
	GetLatestProfile(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, error)

	// ListIssues returns the findings of the dataset's last profiling run.
	ListIssues(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityIssue, error)
}

// qualityService implements QualityService.
type qualityService struct {
	datasets repositories.DatasetRepository
	profiles repositories.ProfileRepository
	issues   repositories.IssueRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewQualityService creates a new quality service.
func NewQualityService(
	datasets repositories.DatasetRepository,
	profiles repositories.ProfileRepository,
	issues repositories.IssueRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) QualityService {
	return &qualityService{
		datasets: datasets,
		profiles: profiles,
		issues:   issues,
		metrics:  m,
		logger:   logger.Named("quality_service"),
	}
}

// GenerateProfile runs the full profiling pass over a dataset's stored file.
func (s *qualityService) GenerateProfile(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, []*models.QualityIssue, error) {
	dataset, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return nil, nil, err
	}

	table, err := loadStoredTable(dataset)
	if err != nil {
		return nil, nil, err
	}

	profile := profiler.Profile(table)
	anomalies := profiler.DetectAnomalies(table)
	score := profiler.Score(profile, anomalies)

	stored := &models.QualityProfile{
		DatasetID:    dataset.ID,
		QualityScore: score,
		Metrics: models.ProfileMetrics{
			Profile:   profile,
			Anomalies: anomalies,
		},
	}
	if err := s.profiles.Create(ctx, stored); err != nil {
		return nil, nil, err
	}

	issues := profiler.ExtractIssues(profile, anomalies)
	if err := s.issues.ReplaceForDataset(ctx, dataset.ID, issues); err != nil {
		return nil, nil, err
	}

	s.metrics.RecordProfileGenerated()
	s.metrics.RecordAnomaliesDetected(anomalies.AnomalyCount)

	s.logger.Info("Profile generated",
		zap.String("dataset_id", dataset.ID.String()),
		zap.Float64("quality_score", score),
		zap.Int("issues", len(issues)),
		zap.Int("anomalies", anomalies.AnomalyCount))

	return stored, issues, nil
}

// GetLatestProfile returns the newest stored profile for a dataset. A
// missing dataset surfaces as ErrNotFound, a dataset that was never
// profiled as ErrNoProfile.
func (s *qualityService) GetLatestProfile(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, error) {
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	profile, err := s.profiles.GetLatest(ctx, datasetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNoProfile
		}
		return nil, err
	}

	return profile, nil
}

// ListIssues returns the findings of the dataset's last profiling run.
func (s *qualityService) ListIssues(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityIssue, error) {
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	return s.issues.ListByDataset(ctx, datasetID)
}

// Ensure qualityService implements QualityService at compile time.
var _ QualityService = (*qualityService)(nil)
