package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/api/response"
	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/pkg/models"
)

// JobReader defines the interface the job handlers depend on.
type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	GetProgress(ctx context.Context, id uuid.UUID) models.Progress
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		job, err := svc.GetJob(r.Context(), id)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		resp := jobResponse{
			JobID:     job.ID.String(),
			Type:      job.Type,
			Status:    job.Status,
			Result:    job.Result,
			CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
		}
		if job.ErrorMessage != nil {
			resp.Error = *job.ErrorMessage
		}
		if job.StartedAt != nil {
			resp.StartedAt = job.StartedAt.UTC().Format(time.RFC3339)
		}
		if job.CompletedAt != nil {
			resp.CompletedAt = job.CompletedAt.UTC().Format(time.RFC3339)
		}
		response.JSON(w, resp)
	}
}

// NewProgressHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/progress. It always answers with a progress
// record; a job with no record yet reads as queued.
func NewProgressHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		p := svc.GetProgress(r.Context(), id)
		response.JSON(w, progressResponse{
			JobID:     p.JobID,
			Progress:  p.Progress,
			Message:   p.Message,
			Timestamp: p.Timestamp,
		})
	}
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID", "Job id must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

type jobResponse struct {
	JobID       string          `json:"job_id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	StartedAt   string          `json:"started_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

type progressResponse struct {
	JobID     string  `json:"job_id"`
	Progress  int     `json:"progress"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}
