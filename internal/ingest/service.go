// Package ingest adds products to the catalog as asynchronous jobs: image
// deduplication by content hash, embedding, blob upload, and the final
// transactional insert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/blob"
	"github.com/commercebridge/visearch/internal/catalog"
	"github.com/commercebridge/visearch/internal/embed"
	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/internal/search"
	"github.com/commercebridge/visearch/pkg/models"
)

// ErrInvalidProduct means the submission is missing required fields.
var ErrInvalidProduct = errors.New("product requires a name and at least one image")

// Ingestion result statuses.
const (
	StatusCreated = "created"
	StatusSkipped = "skipped"
)

// ImageUpload is one raw product image plus its declared content type.
type ImageUpload struct {
	Data        []byte
	ContentType string
}

// AddRequest is one product submission.
type AddRequest struct {
	Name        string
	Price       float64
	Description string
	Category    string
	Images      []ImageUpload
}

// AddResult is the payload attached to a completed add_product job. Images
// already present in the catalog count as duplicates; images that fail to
// embed or upload count as errors and are listed in ErrorDetails. The product
// is only created when at least one image survives.
type AddResult struct {
	Status       string    `json:"status"`
	ProductID    uuid.UUID `json:"product_id,omitempty"`
	Added        int       `json:"added"`
	Duplicates   int       `json:"duplicates"`
	Errors       int       `json:"errors"`
	ErrorDetails []string  `json:"error_details,omitempty"`
}

// Service runs product ingestion jobs.
type Service struct {
	store    catalog.Store
	uploader blob.Uploader
	embedder embed.Embedder
	pool     *jobs.Pool
}

func NewService(store catalog.Store, uploader blob.Uploader, embedder embed.Embedder, pool *jobs.Pool) *Service {
	return &Service{
		store:    store,
		uploader: uploader,
		embedder: embedder,
		pool:     pool,
	}
}

// SubmitAdd validates the request and enqueues the ingestion job.
func (s *Service) SubmitAdd(ctx context.Context, req AddRequest) (uuid.UUID, error) {
	if req.Name == "" || len(req.Images) == 0 {
		return uuid.Nil, ErrInvalidProduct
	}

	id, err := s.pool.Enqueue(ctx, models.JobTypeAddProduct, s.addTask(req))
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue add_product: %w", err)
	}
	slog.Info("product ingestion enqueued", "job_id", id, "name", req.Name, "images", len(req.Images))
	return id, nil
}

func (s *Service) addTask(req AddRequest) jobs.Task {
	return func(ctx context.Context, report jobs.ProgressFunc) (any, error) {
		report(5, "Processing product images")

		result := AddResult{Status: StatusSkipped}
		product := &models.Product{
			Name:        req.Name,
			Price:       req.Price,
			Description: req.Description,
			Category:    req.Category,
		}

		// Images beyond the first failure still get processed; one bad
		// image never sinks the whole submission.
		for i, img := range req.Images {
			if err := s.addImage(ctx, product, img, &result); err != nil {
				result.Errors++
				result.ErrorDetails = append(result.ErrorDetails, fmt.Sprintf("image %d: %v", i, err))
				slog.Warn("product image skipped", "name", req.Name, "index", i, "error", err)
			}
			report(5+80*(i+1)/len(req.Images), fmt.Sprintf("Processed %d/%d images", i+1, len(req.Images)))
		}

		if result.Added == 0 {
			report(100, "No new images to add")
			return result, nil
		}

		report(90, "Saving product")
		if err := s.store.Insert(ctx, product); err != nil {
			if errors.Is(err, catalog.ErrDuplicateImage) {
				// A concurrent submission won the race on one of the hashes.
				result.Status = StatusSkipped
				result.Added = 0
				result.Duplicates += len(product.ImageHashes)
				report(100, "Product already in catalog")
				return result, nil
			}
			return nil, fmt.Errorf("saving product: %w", err)
		}

		result.Status = StatusCreated
		result.ProductID = product.ID
		report(100, "Product added")
		return result, nil
	}
}

// addImage runs one image through dedup, embedding, and blob upload,
// appending it to the pending product on success.
func (s *Service) addImage(ctx context.Context, product *models.Product, img ImageUpload, result *AddResult) error {
	hash := search.HashBytes(img.Data)

	exists, err := s.store.ImageHashExists(ctx, hash)
	if err != nil {
		return fmt.Errorf("checking duplicates: %w", err)
	}
	if exists {
		result.Duplicates++
		return nil
	}

	embedding, err := s.embedder.EmbedImage(ctx, img.Data)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	url, err := s.uploader.Upload(ctx, img.Data, img.ContentType)
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}

	product.ImageURLs = append(product.ImageURLs, url)
	product.ImageHashes = append(product.ImageHashes, hash)
	product.Embeddings = append(product.Embeddings, embedding)
	result.Added++
	return nil
}
