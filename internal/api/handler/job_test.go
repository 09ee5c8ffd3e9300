package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/pkg/models"
)

// --- mock JobReader ---

type mockJobReader struct {
	job      *models.Job
	err      error
	progress models.Progress
}

func (m *mockJobReader) GetJob(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return m.job, m.err
}

func (m *mockJobReader) GetProgress(_ context.Context, _ uuid.UUID) models.Progress {
	return m.progress
}

// --- helpers ---

func jobRequest(t *testing.T, path, jobID string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("jobID", jobID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- tests ---

func TestGetJobHandler_Completed(t *testing.T) {
	id := uuid.New()
	started := time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC)
	done := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	mock := &mockJobReader{job: &models.Job{
		ID:          id,
		Type:        models.JobTypeImageSearch,
		Status:      models.JobStatusCompleted,
		Result:      json.RawMessage(`{"matches":[]}`),
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		StartedAt:   &started,
		CompletedAt: &done,
	}}

	h := NewGetJobHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/"+id.String(), id.String()))

	data := parseData(t, rec, http.StatusOK)
	if data["job_id"] != id.String() {
		t.Errorf("unexpected job_id: %v", data["job_id"])
	}
	if data["status"] != models.JobStatusCompleted {
		t.Errorf("unexpected status: %v", data["status"])
	}
	if data["type"] != models.JobTypeImageSearch {
		t.Errorf("unexpected type: %v", data["type"])
	}
	if data["result"] == nil {
		t.Error("expected result payload")
	}
	if data["started_at"] != "2026-03-01T12:00:01Z" {
		t.Errorf("unexpected started_at: %v", data["started_at"])
	}
	if data["completed_at"] != "2026-03-01T12:00:05Z" {
		t.Errorf("unexpected completed_at: %v", data["completed_at"])
	}
}

func TestGetJobHandler_FailedIncludesError(t *testing.T) {
	id := uuid.New()
	msg := "embedding: model refused"
	mock := &mockJobReader{job: &models.Job{
		ID:           id,
		Type:         models.JobTypeVideoSearch,
		Status:       models.JobStatusFailed,
		ErrorMessage: &msg,
		CreatedAt:    time.Now().UTC(),
	}}

	h := NewGetJobHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/"+id.String(), id.String()))

	data := parseData(t, rec, http.StatusOK)
	if data["status"] != models.JobStatusFailed {
		t.Errorf("unexpected status: %v", data["status"])
	}
	if data["error"] != msg {
		t.Errorf("unexpected error: %v", data["error"])
	}
	if _, ok := data["result"]; ok {
		t.Error("failed job must not carry a result")
	}
}

func TestGetJobHandler_NotFound(t *testing.T) {
	mock := &mockJobReader{err: jobs.ErrNotFound}

	h := NewGetJobHandler(mock)
	rec := httptest.NewRecorder()
	id := uuid.New().String()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/"+id, id))

	status, code := parseErr(t, rec)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
	if code != "JOB_NOT_FOUND" {
		t.Errorf("expected JOB_NOT_FOUND, got %s", code)
	}
}

func TestGetJobHandler_InvalidID(t *testing.T) {
	mock := &mockJobReader{}

	h := NewGetJobHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/not-a-uuid", "not-a-uuid"))

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if code != "INVALID_JOB_ID" {
		t.Errorf("expected INVALID_JOB_ID, got %s", code)
	}
}

func TestProgressHandler_ReturnsRecord(t *testing.T) {
	id := uuid.New()
	mock := &mockJobReader{progress: models.Progress{
		JobID:     id.String(),
		Progress:  55,
		Message:   "Matching products",
		Timestamp: 1772366405.25,
	}}

	h := NewProgressHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/"+id.String()+"/progress", id.String()))

	data := parseData(t, rec, http.StatusOK)
	if int(data["progress"].(float64)) != 55 {
		t.Errorf("unexpected progress: %v", data["progress"])
	}
	if data["message"] != "Matching products" {
		t.Errorf("unexpected message: %v", data["message"])
	}
	if data["timestamp"].(float64) != 1772366405.25 {
		t.Errorf("unexpected timestamp: %v", data["timestamp"])
	}
}

func TestProgressHandler_FailureSentinel(t *testing.T) {
	id := uuid.New()
	mock := &mockJobReader{progress: models.Progress{
		JobID:    id.String(),
		Progress: models.ProgressFailed,
		Message:  "Error: no frames extracted from video",
	}}

	h := NewProgressHandler(mock)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/"+id.String()+"/progress", id.String()))

	data := parseData(t, rec, http.StatusOK)
	if int(data["progress"].(float64)) != models.ProgressFailed {
		t.Errorf("expected -1, got %v", data["progress"])
	}
}

func TestProgressHandler_InvalidID(t *testing.T) {
	h := NewProgressHandler(&mockJobReader{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, jobRequest(t, "/api/v1/jobs/xyz/progress", "xyz"))

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if code != "INVALID_JOB_ID" {
		t.Errorf("expected INVALID_JOB_ID, got %s", code)
	}
}
