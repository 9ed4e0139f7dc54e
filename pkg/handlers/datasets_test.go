package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veracity-data/veracity-engine/pkg/apperrors"
	"github.com/veracity-data/veracity-engine/pkg/ingest"
	"github.com/veracity-data/veracity-engine/pkg/models"
	"github.com/veracity-data/veracity-engine/pkg/services"
)

// multipartUpload builds a request with one multipart "file" part.
func multipartUpload(t *testing.T, target, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}
	return resp
}

func TestDatasetsHandler_Upload_Success(t *testing.T) {
	svc := &mockDatasetService{}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := multipartUpload(t, "/api/datasets", "sales.csv", "name,age\nalice,30\n")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.Dataset
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Name != "sales.csv" {
		t.Errorf("expected name 'sales.csv', got %q", resp.Name)
	}
	if resp.Version != 1 {
		t.Errorf("expected version 1, got %d", resp.Version)
	}

	if svc.uploadedName != "sales.csv" {
		t.Errorf("expected service to receive filename 'sales.csv', got %q", svc.uploadedName)
	}
	// httptest requests carry a fixed RemoteAddr with a port.
	if svc.uploadedIP != "192.0.2.1" {
		t.Errorf("expected client IP '192.0.2.1', got %q", svc.uploadedIP)
	}
}

func TestDatasetsHandler_Upload_MissingFilePart(t *testing.T) {
	handler := NewDatasetsHandler(&mockDatasetService{}, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", strings.NewReader("not multipart"))
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp["error"] != "invalid_request" {
		t.Errorf("expected error 'invalid_request', got %q", resp["error"])
	}
}

func TestDatasetsHandler_Upload_ScreeningRejection(t *testing.T) {
	svc := &mockDatasetService{err: &ingest.ScreeningError{
		Step: "content",
		Detail: ingest.RejectionDetail{
			Error:       "Security check failed",
			Reason:      "Your CSV file contains potentially dangerous content",
			Explanation: "CSV files can contain formula injections",
			FoundIssues: []string{"Row 2, column 1: '=SUM(A1)' looks like a dangerous formula or script"},
			HowToFix:    "Remove or replace the flagged values",
		},
	}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := multipartUpload(t, "/api/datasets", "evil.csv", "name\n=SUM(A1)\n")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	var detail ingest.RejectionDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("failed to parse rejection body: %v", err)
	}
	if detail.Error != "Security check failed" {
		t.Errorf("expected error 'Security check failed', got %q", detail.Error)
	}
	if len(detail.FoundIssues) != 1 {
		t.Errorf("expected 1 found issue, got %d", len(detail.FoundIssues))
	}
	if detail.HowToFix == "" {
		t.Error("expected how_to_fix guidance in rejection body")
	}
}

func TestDatasetsHandler_Upload_MalformedCSV(t *testing.T) {
	svc := &mockDatasetService{err: fmt.Errorf("%w: record on line 3: wrong number of fields", apperrors.ErrMalformedCSV)}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := multipartUpload(t, "/api/datasets", "ragged.csv", "a,b\n1,2\n3,4,5\n")
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp["error"] != "malformed_csv" {
		t.Errorf("expected error 'malformed_csv', got %q", resp["error"])
	}
}

func TestDatasetsHandler_Get_Success(t *testing.T) {
	datasetID := uuid.New()
	svc := &mockDatasetService{dataset: &models.Dataset{ID: datasetID, Name: "sales.csv", Version: 1}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+datasetID.String(), nil)
	req.SetPathValue("did", datasetID.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp models.Dataset
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ID != datasetID {
		t.Errorf("expected dataset ID %s, got %s", datasetID, resp.ID)
	}
}

func TestDatasetsHandler_Get_InvalidID(t *testing.T) {
	handler := NewDatasetsHandler(&mockDatasetService{}, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/not-a-uuid", nil)
	req.SetPathValue("did", "not-a-uuid")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp["error"] != "invalid_dataset_id" {
		t.Errorf("expected error 'invalid_dataset_id', got %q", resp["error"])
	}
}

func TestDatasetsHandler_Get_NotFound(t *testing.T) {
	svc := &mockDatasetService{err: apperrors.ErrNotFound}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	datasetID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+datasetID.String(), nil)
	req.SetPathValue("did", datasetID.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if resp := decodeErrorBody(t, rec); resp["error"] != "not_found" {
		t.Errorf("expected error 'not_found', got %q", resp["error"])
	}
}

func TestDatasetsHandler_List_ReturnsAll(t *testing.T) {
	svc := &mockDatasetService{datasets: []*models.Dataset{
		{ID: uuid.New(), Name: "b.csv", Version: 1},
		{ID: uuid.New(), Name: "a.csv", Version: 1},
	}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp []*models.Dataset
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp) != 2 {
		t.Errorf("expected 2 datasets, got %d", len(resp))
	}
}

func TestDatasetsHandler_List_EmptyIsArray(t *testing.T) {
	handler := NewDatasetsHandler(&mockDatasetService{}, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty array body, got %q", body)
	}
}

func TestDatasetsHandler_Delete_Success(t *testing.T) {
	datasetID := uuid.New()
	svc := &mockDatasetService{dataset: &models.Dataset{ID: datasetID, Name: "sales.csv", Version: 1}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodDelete, "/api/datasets/"+datasetID.String(), nil)
	req.SetPathValue("did", datasetID.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp DeleteDatasetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Message != "Dataset 'sales.csv' deleted successfully" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.DeletedID != datasetID {
		t.Errorf("expected deleted_id %s, got %s", datasetID, resp.DeletedID)
	}
}

func TestDatasetsHandler_Delete_HasVersions(t *testing.T) {
	svc := &mockDatasetService{err: &services.HasVersionsError{Count: 1, Names: []string{"sales_v2.csv"}}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	datasetID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/datasets/"+datasetID.String(), nil)
	req.SetPathValue("did", datasetID.String())
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	resp := decodeErrorBody(t, rec)
	if resp["error"] != "has_versions" {
		t.Errorf("expected error 'has_versions', got %q", resp["error"])
	}
	want := "Cannot delete: 1 version(s) depend on this dataset (sales_v2.csv). Delete them first."
	if resp["message"] != want {
		t.Errorf("expected message %q, got %q", want, resp["message"])
	}
}

func TestDatasetsHandler_UploadVersion_Success(t *testing.T) {
	rootID := uuid.New()
	svc := &mockDatasetService{dataset: &models.Dataset{
		ID:           uuid.New(),
		Name:         "sales_v2.csv",
		Version:      2,
		ParentID:     &rootID,
		TotalRows:    3,
		TotalColumns: 2,
	}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := multipartUpload(t, "/api/datasets/"+rootID.String()+"/versions", "sales.csv", "name,age\nalice,30\n")
	req.SetPathValue("did", rootID.String())
	rec := httptest.NewRecorder()

	handler.UploadVersion(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp NewVersionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Message != "Version 2 created" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.RootID != rootID {
		t.Errorf("expected root_id %s, got %s", rootID, resp.RootID)
	}
	if resp.NewDataset.Name != "sales_v2.csv" {
		t.Errorf("expected new dataset name 'sales_v2.csv', got %q", resp.NewDataset.Name)
	}
	if resp.NewDataset.TotalRows != 3 {
		t.Errorf("expected total_rows 3, got %d", resp.NewDataset.TotalRows)
	}
}

func TestDatasetsHandler_UploadVersion_ParentNotFound(t *testing.T) {
	svc := &mockDatasetService{err: apperrors.ErrNotFound}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	datasetID := uuid.New()
	req := multipartUpload(t, "/api/datasets/"+datasetID.String()+"/versions", "sales.csv", "name\nalice\n")
	req.SetPathValue("did", datasetID.String())
	rec := httptest.NewRecorder()

	handler.UploadVersion(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
}

func TestDatasetsHandler_ListVersions_Success(t *testing.T) {
	rootID := uuid.New()
	v2 := uuid.New()
	svc := &mockDatasetService{
		rootID: rootID,
		versions: []*models.Dataset{
			{ID: rootID, Name: "sales.csv", Version: 1, TotalRows: 2, TotalColumns: 2},
			{ID: v2, Name: "sales_v2.csv", Version: 2, ParentID: &rootID, TotalRows: 3, TotalColumns: 2},
		},
	}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/"+v2.String()+"/versions", nil)
	req.SetPathValue("did", v2.String())
	rec := httptest.NewRecorder()

	handler.ListVersions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp VersionListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.DatasetID != v2 {
		t.Errorf("expected dataset_id %s, got %s", v2, resp.DatasetID)
	}
	if resp.RootID != rootID {
		t.Errorf("expected root_id %s, got %s", rootID, resp.RootID)
	}
	if len(resp.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(resp.Versions))
	}
	if resp.Versions[0].Version != 1 || resp.Versions[1].Version != 2 {
		t.Errorf("expected versions in order 1, 2; got %d, %d", resp.Versions[0].Version, resp.Versions[1].Version)
	}
}

func TestDatasetsHandler_SecurityCheck(t *testing.T) {
	svc := &mockDatasetService{report: &ingest.Report{
		Filename:    "suspect.csv",
		SizeMB:      0.001,
		SizeOK:      true,
		ExtensionOK: true,
		Structure:   ingest.StructureResult{Valid: true, Columns: 2, Rows: 1},
		SecurityScan: ingest.ScanResult{
			Safe:     false,
			Findings: []ingest.Finding{{Line: 2, Cell: 1, Value: "=SUM(A1)", Kind: ingest.FindingFormula}},
			Message:  "Found 1 potentially dangerous cell(s)",
		},
		FileHash: "deadbeef",
	}}
	handler := NewDatasetsHandler(svc, nil, nil, zap.NewNop())

	req := multipartUpload(t, "/api/datasets/security-check", "suspect.csv", "name,x\nalice,=SUM(A1)\n")
	rec := httptest.NewRecorder()

	handler.SecurityCheck(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp ingest.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Filename != "suspect.csv" {
		t.Errorf("expected filename 'suspect.csv', got %q", resp.Filename)
	}
	if resp.SecurityScan.Safe {
		t.Error("expected security_scan.safe to be false")
	}
	if len(resp.SecurityScan.Findings) != 1 {
		t.Errorf("expected 1 finding, got %d", len(resp.SecurityScan.Findings))
	}
}
