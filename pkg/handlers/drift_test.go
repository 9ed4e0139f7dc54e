package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

func TestDriftHandler_Compare_Success(t *testing.T) {
	oldID := uuid.New()
	newID := uuid.New()
	svc := &mockDriftService{comparison: &services.Comparison{
		DatasetA: services.DatasetRef{ID: oldID, Name: "sales.csv", Version: 1},
		DatasetB: services.DatasetRef{ID: newID, Name: "sales_v2.csv", Version: 2},
		DriftScore: &models.DriftScore{
			Overall:     models.DriftWarning,
			IssuesCount: 2,
			Label:       "Some drift detected - review recommended",
		},
		Report: &models.DriftReport{
			RowChanges: models.RowChanges{Old: 100, New: 150, Diff: 50, DiffPct: 50.0},
			Summary:    []string{"Rows: 100 -> 150 (+50.0%)"},
		},
	}}
	handler := NewDriftHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+oldID.String()+"/compare/"+newID.String(), nil)
	req.SetPathValue("did", oldID.String())
	req.SetPathValue("oid", newID.String())
	rec := httptest.NewRecorder()

	handler.Compare(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp services.Comparison
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.DatasetA.ID != oldID || resp.DatasetB.ID != newID {
		t.Error("expected dataset_a and dataset_b to carry the requested IDs")
	}
	if resp.DriftScore == nil || resp.DriftScore.Overall != models.DriftWarning {
		t.Errorf("expected warning drift score, got %+v", resp.DriftScore)
	}
	if resp.Report == nil || resp.Report.RowChanges.New != 150 {
		t.Error("expected comparison report with new row count 150")
	}
}

func TestDriftHandler_Compare_SameFieldNamesOnWire(t *testing.T) {
	svc := &mockDriftService{comparison: &services.Comparison{
		DriftScore: &models.DriftScore{Overall: models.DriftGood},
		Report:     &models.DriftReport{},
	}}
	handler := NewDriftHandler(svc, zap.NewNop())

	oldID := uuid.New()
	newID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+oldID.String()+"/compare/"+newID.String(), nil)
	req.SetPathValue("did", oldID.String())
	req.SetPathValue("oid", newID.String())
	rec := httptest.NewRecorder()

	handler.Compare(rec, req)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	for _, key := range []string{"dataset_a", "dataset_b", "drift_score", "comparison"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected response key %q", key)
		}
	}
}

func TestDriftHandler_Compare_NotFound(t *testing.T) {
	svc := &mockDriftService{err: apperrors.ErrNotFound}
	handler := NewDriftHandler(svc, zap.NewNop())

	oldID := uuid.New()
	newID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+oldID.String()+"/compare/"+newID.String(), nil)
	req.SetPathValue("did", oldID.String())
	req.SetPathValue("oid", newID.String())
	rec := httptest.NewRecorder()

	handler.Compare(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp["error"] != "not_found" {
		t.Errorf("expected error 'not_found', got %q", resp["error"])
	}
}

func TestDriftHandler_Compare_InvalidOtherID(t *testing.T) {
	handler := NewDriftHandler(&mockDriftService{}, zap.NewNop())

	oldID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+oldID.String()+"/compare/banana", nil)
	req.SetPathValue("did", oldID.String())
	req.SetPathValue("oid", "banana")
	rec := httptest.NewRecorder()

	handler.Compare(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp["error"] != "invalid_dataset_id" {
		t.Errorf("expected error 'invalid_dataset_id', got %q", resp["error"])
	}
}
