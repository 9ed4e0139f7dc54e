package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
	"github.com/veracity-data/veracity-engine/pkg/tabular"
)

// mockDatasetService is a configurable mock for all handler tests.
type mockDatasetService struct {
	dataset  *models.Dataset
	datasets []*models.Dataset
	rootID   uuid.UUID
	versions []*models.Dataset
	report   *ingest.Report
	err      error

	uploadedName string
	uploadedIP   string
}

func (m *mockDatasetService) Upload(ctx context.Context, filename string, content []byte, clientIP string) (*models.Dataset, error) {
	m.uploadedName = filename
	m.uploadedIP = clientIP
	if m.err != nil {
		return nil, m.err
	}
	if m.dataset != nil {
		return m.dataset, nil
	}
	return &models.Dataset{ID: uuid.New(), Name: filename, Version: 1}, nil
}

func (m *mockDatasetService) UploadVersion(ctx context.Context, parentID uuid.UUID, content []byte, clientIP string) (*models.Dataset, error) {
	m.uploadedIP = clientIP
	if m.err != nil {
		return nil, m.err
	}
	if m.dataset != nil {
		return m.dataset, nil
	}
	parent := parentID
	return &models.Dataset{ID: uuid.New(), Name: "data_v2.csv", Version: 2, ParentID: &parent}, nil
}

func (m *mockDatasetService) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.dataset != nil {
		return m.dataset, nil
	}
	return &models.Dataset{ID: id, Name: "data.csv", Version: 1}, nil
}

func (m *mockDatasetService) List(ctx context.Context) ([]*models.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.datasets, nil
}

func (m *mockDatasetService) ListVersions(ctx context.Context, id uuid.UUID) (uuid.UUID, []*models.Dataset, error) {
	if m.err != nil {
		return uuid.Nil, nil, m.err
	}
	return m.rootID, m.versions, nil
}

func (m *mockDatasetService) Delete(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.dataset != nil {
		return m.dataset, nil
	}
	return &models.Dataset{ID: id, Name: "data.csv", Version: 1}, nil
}

func (m *mockDatasetService) Screen(filename string, content []byte, clientIP string) *ingest.Report {
	m.uploadedName = filename
	m.uploadedIP = clientIP
	if m.report != nil {
		return m.report
	}
	return &ingest.Report{Filename: filename}
}

func (m *mockDatasetService) LoadTable(ctx context.Context, id uuid.UUID) (*models.Dataset, *tabular.Table, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.dataset, nil, nil
}

// mockQualityService is a configurable mock for profiling endpoints.
type mockQualityService struct {
	profile *models.QualityProfile
	issues  []*models.QualityIssue
	err     error
}

func (m *mockQualityService) GenerateProfile(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, []*models.QualityIssue, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.profile, m.issues, nil
}

func (m *mockQualityService) GetLatestProfile(ctx context.Context, datasetID uuid.UUID) (*models.QualityProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

func (m *mockQualityService) ListIssues(ctx context.Context, datasetID uuid.UUID) ([]*models.QualityIssue, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.issues, nil
}

// mockValidationService is a configurable mock for rule endpoints.
type mockValidationService struct {
	rule   *models.ValidationRule
	rules  []*models.ValidationRule
	report *models.ValidationReport
	err    error
}

func (m *mockValidationService) CreateRule(ctx context.Context, datasetID uuid.UUID, columnName, ruleType string, parameters map[string]any) (*models.ValidationRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.rule != nil {
		return m.rule, nil
	}
	return &models.ValidationRule{
		ID:         uuid.New(),
		DatasetID:  datasetID,
		ColumnName: columnName,
		RuleType:   ruleType,
		Parameters: parameters,
	}, nil
}

func (m *mockValidationService) ListRules(ctx context.Context, datasetID uuid.UUID) ([]*models.ValidationRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rules, nil
}

func (m *mockValidationService) DeleteRule(ctx context.Context, datasetID, ruleID uuid.UUID) error {
	return m.err
}

func (m *mockValidationService) Validate(ctx context.Context, datasetID uuid.UUID) (*models.ValidationReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.report, nil
}

// mockDriftService is a configurable mock for comparison endpoints.
type mockDriftService struct {
	comparison *services.Comparison
	err        error
}

func (m *mockDriftService) Compare(ctx context.Context, datasetA, datasetB uuid.UUID) (*services.Comparison, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.comparison, nil
}

// mockAdvisorService is a configurable mock for advisory endpoints.
type mockAdvisorService struct {
	analysis    *models.QualityAnalysis
	suggestions *models.RuleSuggestions
	explanation string
	err         error
}

func (m *mockAdvisorService) AnalyzeQuality(ctx context.Context, datasetID uuid.UUID) (*models.QualityAnalysis, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func (m *mockAdvisorService) SuggestRules(ctx context.Context, datasetID uuid.UUID, columnName string) (*models.RuleSuggestions, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.suggestions, nil
}

func (m *mockAdvisorService) ExplainIssue(ctx context.Context, issueType, columnName, description string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.explanation, nil
}

func (m *mockAdvisorService) ExplainStoredIssue(ctx context.Context, datasetID, issueID uuid.UUID) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.explanation, nil
}
