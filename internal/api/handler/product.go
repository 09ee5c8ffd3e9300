package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/api/response"
	"github.com/commercebridge/visearch/internal/ingest"
	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/pkg/models"
)

// Ingestor defines the interface the product handler depends on.
type Ingestor interface {
	SubmitAdd(ctx context.Context, req ingest.AddRequest) (uuid.UUID, error)
}

// NewAddProductHandler returns an http.HandlerFunc for POST /api/v1/products.
// The form carries name, price, description, category, and one or more
// "images" files. Ingestion runs asynchronously; the response is 202 with the
// job to poll.
func NewAddProductHandler(svc Ingestor, maxUploadSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		if err := r.ParseMultipartForm(memoryThreshold); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request must be multipart/form-data within the upload size limit", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		name := r.FormValue("name")
		if name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_PRODUCT", "name is required", nil)
			return
		}

		var price float64
		if raw := r.FormValue("price"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed < 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_PRODUCT",
					"price must be a non-negative number", nil)
				return
			}
			price = parsed
		}

		headers := formFiles(r, "images")
		if len(headers) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_PRODUCT",
				"at least one image is required", nil)
			return
		}

		images := make([]ingest.ImageUpload, 0, len(headers))
		for _, h := range headers {
			data, err := readUpload(h)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_PRODUCT",
					"Unreadable image upload: "+h.Filename, nil)
				return
			}
			images = append(images, ingest.ImageUpload{
				Data:        data,
				ContentType: h.Header.Get("Content-Type"),
			})
		}

		id, err := svc.SubmitAdd(r.Context(), ingest.AddRequest{
			Name:        name,
			Price:       price,
			Description: r.FormValue("description"),
			Category:    r.FormValue("category"),
			Images:      images,
		})
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrInvalidProduct):
				response.Error(w, http.StatusBadRequest, "INVALID_PRODUCT",
					"Product requires a name and at least one image", nil)
			case errors.Is(err, jobs.ErrShuttingDown):
				response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN",
					"Server is shutting down", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, addProductResponse{
			JobID:  id.String(),
			Status: models.JobStatusPending,
		})
	}
}

func readUpload(h *multipart.FileHeader) ([]byte, error) {
	file, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

type addProductResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
