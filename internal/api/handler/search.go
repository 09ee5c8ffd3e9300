package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/commercebridge/visearch/internal/api/response"
	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/internal/search"
)

// memoryThreshold is how much of a multipart body is buffered in memory
// before spilling to disk.
const memoryThreshold = 32 << 20

// Searcher defines the interface the search handler depends on.
type Searcher interface {
	Submit(ctx context.Context, req search.Request) (*search.Submission, error)
}

// NewSearchHandler returns an http.HandlerFunc for POST /api/v1/search. The
// form carries at most one of an "image" or "video" file, plus an optional
// "query" text field. A result already cached for identical content answers
// with 200; otherwise the response is 202 with the job to poll.
func NewSearchHandler(svc Searcher, maxUploadSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(memoryThreshold); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart/form-data within the upload size limit", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		image, err := readFormFile(r, "image")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable image upload", nil)
			return
		}
		video, err := readFormFile(r, "video")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable video upload", nil)
			return
		}

		sub, err := svc.Submit(r.Context(), search.Request{
			Image: image,
			Video: video,
			Query: r.FormValue("query"),
		})
		if err != nil {
			switch {
			case errors.Is(err, search.ErrInvalidInput):
				response.Error(w, http.StatusBadRequest, "INVALID_INPUT",
					"Provide exactly one of image or video, or a text query", nil)
			case errors.Is(err, jobs.ErrShuttingDown):
				response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
					"Server is shutting down", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		if sub.Cached {
			response.JSON(w, searchCachedResponse{
				Status: "completed",
				Cached: true,
				Result: sub.Result,
			})
			return
		}

		response.Accepted(w, searchAcceptedResponse{
			JobID:  sub.JobID.String(),
			Status: sub.Status,
		})
	}
}

// readFormFile returns the contents of an optional form file, or nil when the
// field is absent.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// formFiles returns all uploads under a repeated form field.
func formFiles(r *http.Request, field string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.File[field]
}

type searchAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type searchCachedResponse struct {
	Status string `json:"status"`
	Cached bool   `json:"cached"`
	Result any    `json:"result"`
}
