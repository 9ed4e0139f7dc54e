package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
)

// mockRuleRepo implements repositories.RuleRepository for testing.
type mockRuleRepo struct {
	rules     []*models.ValidationRule
	createErr error
	deleteErr error
	listErr   error
}

func (m *mockRuleRepo) Create(_ context.Context, rule *models.ValidationRule) error {
	if m.createErr != nil {
		return m.createErr
	}
	rule.ID = uuid.New()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}
	m.rules = append(m.rules, rule)
	return nil
}

func (m *mockRuleRepo) Get(_ context.Context, id uuid.UUID) (*models.ValidationRule, error) {
	for _, r := range m.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockRuleRepo) ListByDataset(_ context.Context, datasetID uuid.UUID) ([]*models.ValidationRule, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	// Append order is creation order.
	var result []*models.ValidationRule
	for _, r := range m.rules {
		if r.DatasetID == datasetID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func newTestValidationService(t *testing.T) (ValidationService, *mockDatasetRepo, *mockRuleRepo) {
	t.Helper()
	datasets := &mockDatasetRepo{}
	ruleRepo := &mockRuleRepo{}
	svc := NewValidationService(datasets, ruleRepo, nil, zap.NewNop())
	return svc, datasets, ruleRepo
}

func TestValidationService_CreateRule_Valid(t *testing.T) {
	svc, datasets, ruleRepo := newTestValidationService(t)
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	rule, err := svc.CreateRule(context.Background(), dataset.ID, "age", models.RuleRange,
		map[string]any{"min": 0, "max": 120})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rule.ID)
	assert.Equal(t, dataset.ID, rule.DatasetID)
	assert.Equal(t, "age", rule.ColumnName)
	assert.Equal(t, models.RuleRange, rule.RuleType)
	assert.Len(t, ruleRepo.rules, 1)
}

func TestValidationService_CreateRule_ColumnMayBeAbsent(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	// The column does not have to exist yet; validation reports ERROR later.
	_, err := svc.CreateRule(context.Background(), dataset.ID, "phone", models.RuleNotNull, nil)
	assert.NoError(t, err)
}

func TestValidationService_CreateRule_MissingColumnName(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	_, err := svc.CreateRule(context.Background(), dataset.ID, "", models.RuleNotNull, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRule)
	assert.Contains(t, err.Error(), "column name is required")
}

func TestValidationService_CreateRule_UnknownType(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	_, err := svc.CreateRule(context.Background(), dataset.ID, "age", "frobnicate", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRule)
}

func TestValidationService_CreateRule_BadParameters(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	// Range needs at least one bound.
	_, err := svc.CreateRule(context.Background(), dataset.ID, "age", models.RuleRange, map[string]any{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRule)

	// Regex must compile.
	_, err = svc.CreateRule(context.Background(), dataset.ID, "name", models.RuleRegex,
		map[string]any{"pattern": "("})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRule)
}

func TestValidationService_CreateRule_DatasetNotFound(t *testing.T) {
	svc, _, _ := newTestValidationService(t)

	_, err := svc.CreateRule(context.Background(), uuid.New(), "age", models.RuleNotNull, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestValidationService_Validate_NoRules(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)

	// A bogus stored path proves the file is never read on this path.
	dataset := &models.Dataset{ID: uuid.New(), Name: "gone.csv", Version: 1, StoredPath: "/nonexistent/gone.csv"}
	datasets.datasets = append(datasets.datasets, dataset)

	report, err := svc.Validate(context.Background(), dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ValidationNoRules, report.Status)
	assert.Equal(t, "No validation rules defined", report.Message)
	assert.Empty(t, report.Results)
}

func TestValidationService_Validate_AppliesStoredRules(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)
	ctx := context.Background()

	csv := "name,age,email\nalice,30,alice@example.com\nbob,,bob@example.com\ncarol,135,carol@example.com\n"
	dataset := insertStoredDataset(t, datasets, "people.csv", 1, nil, csv)

	_, err := svc.CreateRule(ctx, dataset.ID, "age", models.RuleNotNull, nil)
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, dataset.ID, "age", models.RuleRange, map[string]any{"min": 0, "max": 120})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, dataset.ID, "name", models.RuleMinLength, map[string]any{"n": 2})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, dataset.ID, "phone", models.RuleNotNull, nil)
	require.NoError(t, err)

	report, err := svc.Validate(ctx, dataset.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ValidationFailed, report.OverallStatus)
	assert.Equal(t, 4, report.TotalRules)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 4)

	notNull := report.Results[0]
	assert.Equal(t, models.ValidationFailed, notNull.Status)
	assert.Equal(t, 1, notNull.Violations)
	require.Len(t, notNull.ViolationDetails, 1)
	assert.Equal(t, 1, notNull.ViolationDetails[0].RowIndex)
	assert.Equal(t, "", notNull.ViolationDetails[0].ColumnValue)

	rangeResult := report.Results[1]
	assert.Equal(t, models.ValidationFailed, rangeResult.Status)
	assert.Equal(t, 1, rangeResult.Violations)
	require.Len(t, rangeResult.ViolationDetails, 1)
	assert.Equal(t, 2, rangeResult.ViolationDetails[0].RowIndex)
	assert.Equal(t, "135", rangeResult.ViolationDetails[0].ColumnValue)

	assert.Equal(t, models.ValidationPassed, report.Results[2].Status)

	missingColumn := report.Results[3]
	assert.Equal(t, models.ValidationError, missingColumn.Status)
	assert.Contains(t, missingColumn.Message, "phone")
}

func TestValidationService_Validate_DatasetNotFound(t *testing.T) {
	svc, _, _ := newTestValidationService(t)

	_, err := svc.Validate(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestValidationService_ListRules_CreationOrder(t *testing.T) {
	svc, datasets, _ := newTestValidationService(t)
	ctx := context.Background()
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)
	other := insertStoredDataset(t, datasets, "other.csv", 1, nil, safeCSV)

	_, err := svc.CreateRule(ctx, dataset.ID, "age", models.RuleNotNull, nil)
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, dataset.ID, "name", models.RuleUnique, nil)
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, other.ID, "age", models.RuleNotNull, nil)
	require.NoError(t, err)

	list, err := svc.ListRules(ctx, dataset.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "age", list[0].ColumnName)
	assert.Equal(t, "name", list[1].ColumnName)
}

func TestValidationService_DeleteRule(t *testing.T) {
	svc, datasets, ruleRepo := newTestValidationService(t)
	ctx := context.Background()
	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	rule, err := svc.CreateRule(ctx, dataset.ID, "age", models.RuleNotNull, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRule(ctx, dataset.ID, rule.ID))
	assert.Empty(t, ruleRepo.rules)

	assert.ErrorIs(t, svc.DeleteRule(ctx, dataset.ID, rule.ID), apperrors.ErrNotFound)
}

func TestValidationService_DeleteRule_WrongDataset(t *testing.T) {
	svc, datasets, ruleRepo := newTestValidationService(t)
	ctx := context.Background()
	a := insertStoredDataset(t, datasets, "a.csv", 1, nil, safeCSV)
	b := insertStoredDataset(t, datasets, "b.csv", 1, nil, safeCSV)

	rule, err := svc.CreateRule(ctx, a.ID, "age", models.RuleNotNull, nil)
	require.NoError(t, err)

	// The rule exists but belongs to another dataset.
	assert.ErrorIs(t, svc.DeleteRule(ctx, b.ID, rule.ID), apperrors.ErrNotFound)
	assert.Len(t, ruleRepo.rules, 1)
}
