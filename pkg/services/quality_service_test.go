package services

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/models"
)

// mockProfileRepo implements repositories.ProfileRepository for testing.
type mockProfileRepo struct {
	profiles     []*models.QualityProfile
	createErr    error
	getErr       error
	pruneErr     error
	pruneDeleted int64
	pruneCalls   []int
}

func (m *mockProfileRepo) Create(_ context.Context, profile *models.QualityProfile) error {
	if m.createErr != nil {
		return m.createErr
	}
	profile.ID = uuid.New()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}
	m.profiles = append(m.profiles, profile)
	return nil
}

func (m *mockProfileRepo) GetLatest(_ context.Context, datasetID uuid.UUID) (*models.QualityProfile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var latest *models.QualityProfile
	for _, p := range m.profiles {
		if p.DatasetID == datasetID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (m *mockProfileRepo) ListByDataset(_ context.Context, datasetID uuid.UUID) ([]*models.QualityProfile, error) {
	var result []*models.QualityProfile
	for _, p := range m.profiles {
		if p.DatasetID == datasetID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockProfileRepo) PruneKeepNewest(_ context.Context, keep int) (int64, error) {
	m.pruneCalls = append(m.pruneCalls, keep)
	return m.pruneDeleted, m.pruneErr
}

// mockIssueRepo implements repositories.IssueRepository for testing.
type mockIssueRepo struct {
	byDataset  map[uuid.UUID][]*models.QualityIssue
	replaceErr error
	listErr    error
}

func newMockIssueRepo() *mockIssueRepo {
	return &mockIssueRepo{byDataset: make(map[uuid.UUID][]*models.QualityIssue)}
}

func (m *mockIssueRepo) ReplaceForDataset(_ context.Context, datasetID uuid.UUID, issues []*models.QualityIssue) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	for _, issue := range issues {
		issue.ID = uuid.New()
		issue.DatasetID = datasetID
		issue.CreatedAt = time.Now()
	}
	m.byDataset[datasetID] = issues
	return nil
}

func (m *mockIssueRepo) ListByDataset(_ context.Context, datasetID uuid.UUID) ([]*models.QualityIssue, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.byDataset[datasetID], nil
}

// insertStoredDataset registers a dataset whose stored file holds the given
// CSV content.
func insertStoredDataset(t *testing.T, repo *mockDatasetRepo, name string, version int, parentID *uuid.UUID, csv string) *models.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	dataset := &models.Dataset{
		ID:         uuid.New(),
		Name:       name,
		Version:    version,
		ParentID:   parentID,
		StoredPath: path,
		FileHash:   ingest.ComputeFileHash([]byte(csv)),
		SizeBytes:  int64(len(csv)),
		CreatedAt:  time.Now(),
	}
	repo.datasets = append(repo.datasets, dataset)
	return dataset
}

// dirtyCSV has 40% missing ages and one exact duplicate row.
const dirtyCSV = `name,age,city
alice,30,NYC
bob,,LA
carol,35,NYC
alice,30,NYC
dave,,SF
`

func TestQualityService_GenerateProfile_PersistsProfileAndIssues(t *testing.T) {
	datasets := &mockDatasetRepo{}
	profiles := &mockProfileRepo{}
	issues := newMockIssueRepo()
	svc := NewQualityService(datasets, profiles, issues, nil, zap.NewNop())

	dataset := insertStoredDataset(t, datasets, "dirty.csv", 1, nil, dirtyCSV)

	profile, found, err := svc.GenerateProfile(context.Background(), dataset.ID)
	require.NoError(t, err)

	assert.Equal(t, dataset.ID, profile.DatasetID)
	assert.Greater(t, profile.QualityScore, 0.0)
	assert.Less(t, profile.QualityScore, 100.0)
	require.NotNil(t, profile.Metrics.Profile)
	assert.Equal(t, 5, profile.Metrics.Profile.TotalRows)
	assert.Equal(t, 3, profile.Metrics.Profile.TotalColumns)
	require.NotNil(t, profile.Metrics.Anomalies)

	require.Len(t, found, 2)
	assert.Equal(t, models.IssueMissingValues, found[0].IssueType)
	assert.Equal(t, "age", found[0].ColumnName)
	assert.Equal(t, models.SeverityHigh, found[0].Severity)
	assert.Equal(t, 2, found[0].AffectedRows)
	assert.Equal(t, models.IssueDuplicates, found[1].IssueType)
	assert.Equal(t, 1, found[1].AffectedRows)

	assert.Len(t, profiles.profiles, 1)
	assert.Equal(t, found, issues.byDataset[dataset.ID])
}

func TestQualityService_GenerateProfile_CleanDataScoresFull(t *testing.T) {
	datasets := &mockDatasetRepo{}
	profiles := &mockProfileRepo{}
	issues := newMockIssueRepo()
	svc := NewQualityService(datasets, profiles, issues, nil, zap.NewNop())

	dataset := insertStoredDataset(t, datasets, "clean.csv", 1, nil, safeCSV)

	profile, found, err := svc.GenerateProfile(context.Background(), dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, profile.QualityScore)
	assert.Empty(t, found)
}

func TestQualityService_GenerateProfile_DatasetNotFound(t *testing.T) {
	svc := NewQualityService(&mockDatasetRepo{}, &mockProfileRepo{}, newMockIssueRepo(), nil, zap.NewNop())

	_, _, err := svc.GenerateProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestQualityService_GenerateProfile_RepeatedRunsReplaceIssues(t *testing.T) {
	datasets := &mockDatasetRepo{}
	profiles := &mockProfileRepo{}
	issues := newMockIssueRepo()
	svc := NewQualityService(datasets, profiles, issues, nil, zap.NewNop())

	dataset := insertStoredDataset(t, datasets, "dirty.csv", 1, nil, dirtyCSV)

	_, _, err := svc.GenerateProfile(context.Background(), dataset.ID)
	require.NoError(t, err)
	_, second, err := svc.GenerateProfile(context.Background(), dataset.ID)
	require.NoError(t, err)

	// Profile history accumulates, issues do not.
	assert.Len(t, profiles.profiles, 2)
	assert.Equal(t, second, issues.byDataset[dataset.ID])
}

func TestQualityService_GetLatestProfile_ReturnsNewest(t *testing.T) {
	datasets := &mockDatasetRepo{}
	profiles := &mockProfileRepo{}
	svc := NewQualityService(datasets, profiles, newMockIssueRepo(), nil, zap.NewNop())

	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)
	now := time.Now()
	profiles.profiles = append(profiles.profiles,
		&models.QualityProfile{ID: uuid.New(), DatasetID: dataset.ID, QualityScore: 80, CreatedAt: now.Add(-time.Hour)},
		&models.QualityProfile{ID: uuid.New(), DatasetID: dataset.ID, QualityScore: 95, CreatedAt: now},
	)

	latest, err := svc.GetLatestProfile(context.Background(), dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, 95.0, latest.QualityScore)
}

func TestQualityService_GetLatestProfile_NoProfileYet(t *testing.T) {
	datasets := &mockDatasetRepo{}
	svc := NewQualityService(datasets, &mockProfileRepo{}, newMockIssueRepo(), nil, zap.NewNop())

	dataset := insertStoredDataset(t, datasets, "data.csv", 1, nil, safeCSV)

	_, err := svc.GetLatestProfile(context.Background(), dataset.ID)
	assert.ErrorIs(t, err, apperrors.ErrNoProfile)
}

func TestQualityService_GetLatestProfile_DatasetNotFound(t *testing.T) {
	svc := NewQualityService(&mockDatasetRepo{}, &mockProfileRepo{}, newMockIssueRepo(), nil, zap.NewNop())

	_, err := svc.GetLatestProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrNoProfile)
}

func TestQualityService_ListIssues_ReturnsLastRunFindings(t *testing.T) {
	datasets := &mockDatasetRepo{}
	issues := newMockIssueRepo()
	svc := NewQualityService(datasets, &mockProfileRepo{}, issues, nil, zap.NewNop())

	dataset := insertStoredDataset(t, datasets, "dirty.csv", 1, nil, dirtyCSV)
	issues.byDataset[dataset.ID] = []*models.QualityIssue{
		{ID: uuid.New(), DatasetID: dataset.ID, IssueType: models.IssueMissingValues, Severity: models.SeverityHigh, ColumnName: "age"},
	}

	list, err := svc.ListIssues(context.Background(), dataset.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "age", list[0].ColumnName)
}

func TestQualityService_ListIssues_DatasetNotFound(t *testing.T) {
	svc := NewQualityService(&mockDatasetRepo{}, &mockProfileRepo{}, newMockIssueRepo(), nil, zap.NewNop())

	_, err := svc.ListIssues(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
