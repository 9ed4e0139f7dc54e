package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
)

func TestDriftService_Compare_DetectsDegradation(t *testing.T) {
	datasets := &mockDatasetRepo{}
	svc := NewDriftService(datasets, nil, zap.NewNop())

	oldCSV := "name,score,city\nalice,10,NYC\nbob,20,LA\ncarol,30,NYC\n"
	newCSV := "name,score,region\nalice,30,E\nbob,40,W\ncarol,50,E\ndave,60,W\n"
	a := insertStoredDataset(t, datasets, "scores.csv", 1, nil, oldCSV)
	b := insertStoredDataset(t, datasets, "scores_v2.csv", 2, &a.ID, newCSV)

	comparison, err := svc.Compare(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, comparison.DatasetA.ID)
	assert.Equal(t, "scores.csv", comparison.DatasetA.Name)
	assert.Equal(t, 1, comparison.DatasetA.Version)
	assert.Equal(t, b.ID, comparison.DatasetB.ID)
	assert.Equal(t, 2, comparison.DatasetB.Version)

	report := comparison.Report
	require.NotNil(t, report)
	assert.Equal(t, models.RowChanges{Old: 3, New: 4, Diff: 1, DiffPct: 33.33}, report.RowChanges)
	assert.Equal(t, []string{"region"}, report.ColumnChanges.Added)
	assert.Equal(t, []string{"city"}, report.ColumnChanges.Removed)
	assert.Equal(t, []string{"name", "score"}, report.ColumnChanges.Common)

	scoreDrift, ok := report.QualityDrift["score"]
	require.True(t, ok)
	require.NotNil(t, scoreDrift.MeanChangePct)
	assert.Equal(t, 125.0, *scoreDrift.MeanChangePct)
	assert.Equal(t, models.MeanSignificantChange, scoreDrift.MeanStatus)

	// Row surge, removed column, and significant mean change each count.
	score := comparison.DriftScore
	require.NotNil(t, score)
	assert.Equal(t, models.DriftCritical, score.Overall)
	assert.Equal(t, 3, score.IssuesCount)
	assert.Equal(t, 0, score.ImprovementsCount)
}

func TestDriftService_Compare_IdenticalVersionsAreStable(t *testing.T) {
	datasets := &mockDatasetRepo{}
	svc := NewDriftService(datasets, nil, zap.NewNop())

	a := insertStoredDataset(t, datasets, "same.csv", 1, nil, safeCSV)
	b := insertStoredDataset(t, datasets, "same_v2.csv", 2, &a.ID, safeCSV)

	comparison, err := svc.Compare(context.Background(), a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, comparison.Report.RowChanges.Diff)
	assert.Empty(t, comparison.Report.QualityDrift)
	assert.Contains(t, comparison.Report.Summary, "→ No significant quality drift detected")
	assert.Equal(t, models.DriftGood, comparison.DriftScore.Overall)
	assert.Equal(t, 0, comparison.DriftScore.IssuesCount)
}

func TestDriftService_Compare_DatasetNotFound(t *testing.T) {
	datasets := &mockDatasetRepo{}
	svc := NewDriftService(datasets, nil, zap.NewNop())

	a := insertStoredDataset(t, datasets, "only.csv", 1, nil, safeCSV)

	_, err := svc.Compare(context.Background(), uuid.New(), a.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.Compare(context.Background(), a.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
