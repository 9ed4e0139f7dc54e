package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/metrics"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/repositories"
	"github.com/veracity-data/veracity-engine/pkg/rules"
)

// ValidationService defines the interface for rule management and
// validation runs.
type ValidationService interface {
	// CreateRule validates and stores a new rule for a dataset column.
	// Bad rule types or parameters surface as apperrors.ErrInvalidRule.
	CreateRule(ctx context.Context, datasetID uuid.UUID, columnName, ruleType string, parameters map[string]any) (*models.ValidationRule, error)

	ListRules(ctx context.Context, datasetID uuid.UUID) ([]*models.ValidationRule, error)

	// DeleteRule removes a rule scoped to a dataset. A rule that exists
	// but belongs to another dataset reports apperrors.ErrNotFound.
	DeleteRule(ctx context.Context, datasetID, ruleID uuid.UUID) error

	// Validate applies every stored rule to the dataset's current file.
	Validate(ctx context.Context, datasetID uuid.UUID) (*models.ValidationReport, error)
}

// validationService implements ValidationService.
type validationService struct {
	datasets repositories.DatasetRepository
	rules    repositories.RuleRepository
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewValidationService creates a new validation service.
func NewValidationService(
	datasets repositories.DatasetRepository,
	ruleRepo repositories.RuleRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) ValidationService {
	return &validationService{
		datasets: datasets,
		rules:    ruleRepo,
		metrics:  m,
		logger:   logger.Named("validation_service"),
	}
}

// CreateRule validates and stores a new rule. The column does not have to
// exist in the current version; a rule for an absent column reports ERROR
// at validation time instead.
func (s *validationService) CreateRule(ctx context.Context, datasetID uuid.UUID, columnName, ruleType string, parameters map[string]any) (*models.ValidationRule, error) {
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	if columnName == "" {
		return nil, fmt.Errorf("%w: column name is required", apperrors.ErrInvalidRule)
	}

	if parameters == nil {
		parameters = map[string]any{}
	}
	if _, err := rules.ParseParams(ruleType, parameters); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidRule, err)
	}

	rule := &models.ValidationRule{
		DatasetID:  datasetID,
		ColumnName: columnName,
		RuleType:   ruleType,
		Parameters: parameters,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info("Validation rule created",
		zap.String("dataset_id", datasetID.String()),
		zap.String("column", columnName),
		zap.String("rule_type", ruleType))

	return rule, nil
}

// ListRules returns a dataset's rules in creation order.
func (s *validationService) ListRules(ctx context.Context, datasetID uuid.UUID) ([]*models.ValidationRule, error) {
	if _, err := s.datasets.Get(ctx, datasetID); err != nil {
		return nil, err
	}

	return s.rules.ListByDataset(ctx, datasetID)
}

// DeleteRule removes a rule by ID, scoped to the owning dataset.
func (s *validationService) DeleteRule(ctx context.Context, datasetID, ruleID uuid.UUID) error {
	rule, err := s.rules.Get(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule.DatasetID != datasetID {
		return apperrors.ErrNotFound
	}

	return s.rules.Delete(ctx, ruleID)
}

// Validate applies every stored rule to the dataset's current file.
func (s *validationService) Validate(ctx context.Context, datasetID uuid.UUID) (*models.ValidationReport, error) {
	dataset, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	ruleList, err := s.rules.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	// No rules means no file read: the report short-circuits.
	if len(ruleList) == 0 {
		return rules.Validate(nil, nil), nil
	}

	table, err := loadStoredTable(dataset)
	if err != nil {
		return nil, err
	}

	report := rules.Validate(table, ruleList)
	s.metrics.RecordValidationRun()

	s.logger.Info("Validation run completed",
		zap.String("dataset_id", datasetID.String()),
		zap.String("overall_status", report.OverallStatus),
		zap.Int("total_rules", report.TotalRules),
		zap.Int("failed", report.Failed))

	return report, nil
}

// Ensure validationService implements ValidationService at compile time.
var _ ValidationService = (*validationService)(nil)
