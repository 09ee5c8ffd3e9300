// Package search dispatches product searches as asynchronous jobs and caches
// their results by request fingerprint.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/cache"
	"github.com/commercebridge/visearch/internal/catalog"
	"github.com/commercebridge/visearch/internal/config"
	"github.com/commercebridge/visearch/internal/embed"
	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/internal/match"
	"github.com/commercebridge/visearch/internal/video"
	"github.com/commercebridge/visearch/pkg/models"
)

// ErrInvalidInput means the request mixes or omits query media in a way that
// has no defined search mode.
var ErrInvalidInput = errors.New("provide exactly one of image or video, or a text query")

// Request is one search submission. Exactly one of Image or Video may be set;
// a request with neither must carry a non-empty Query, which runs a text-only
// search.
type Request struct {
	Image []byte
	Video []byte
	Query string
}

// Submission is the outcome of Submit. Either Result is set (the fingerprint
// was already cached and no job was created) or JobID is set.
type Submission struct {
	JobID  uuid.UUID
	Status string
	Cached bool
	Result *models.SearchResult
}

// Service coordinates search submissions: fingerprinting, result cache
// lookups, and job dispatch.
type Service struct {
	store     catalog.Store
	cache     cache.Cache
	pool      *jobs.Pool
	embedder  embed.Embedder
	extractor video.Extractor
	search    config.SearchConfig
	video     config.VideoConfig
}

func NewService(store catalog.Store, c cache.Cache, pool *jobs.Pool,
	embedder embed.Embedder, extractor video.Extractor,
	searchCfg config.SearchConfig, videoCfg config.VideoConfig) *Service {
	return &Service{
		store:     store,
		cache:     c,
		pool:      pool,
		embedder:  embedder,
		extractor: extractor,
		search:    searchCfg,
		video:     videoCfg,
	}
}

// Submit validates the request, answers from the result cache when the same
// content was searched before, and otherwise enqueues the matching job. The
// catalog snapshot the job will score against is taken here, before the job
// is handed off, so products inserted after submission never affect an
// in-flight search.
func (s *Service) Submit(ctx context.Context, req Request) (*Submission, error) {
	if len(req.Image) > 0 && len(req.Video) > 0 {
		return nil, fmt.Errorf("%w: both image and video supplied", ErrInvalidInput)
	}
	if len(req.Image) == 0 && len(req.Video) == 0 && req.Query == "" {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidInput)
	}

	fp := Fingerprint(req.Video, req.Image, req.Query)
	if result, ok := s.cachedResult(ctx, fp); ok {
		slog.Info("search served from cache", "fingerprint", fp)
		return &Submission{Cached: true, Result: result}, nil
	}

	products, err := s.store.Find(ctx, catalog.Filter{Query: req.Query})
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	var (
		jobType string
		fn      jobs.Task
	)
	switch {
	case len(req.Image) > 0:
		jobType = models.JobTypeImageSearch
		fn = s.imageTask(req, fp, products)
	case len(req.Video) > 0:
		jobType = models.JobTypeVideoSearch
		fn = s.videoTask(req, fp, products)
	default:
		jobType = models.JobTypeTextSearch
		fn = s.textTask(fp, products)
	}

	id, err := s.pool.Enqueue(ctx, jobType, fn)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	slog.Info("search job enqueued", "job_id", id, "type", jobType, "fingerprint", fp)
	return &Submission{JobID: id, Status: models.JobStatusPending}, nil
}

// GetJob returns the current state of a job.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return s.pool.Job(ctx, id)
}

// GetProgress returns the latest progress record for a job.
func (s *Service) GetProgress(ctx context.Context, id uuid.UUID) models.Progress {
	return s.pool.Progress(ctx, id)
}

func (s *Service) imageTask(req Request, fp string, products []models.Product) jobs.Task {
	return func(ctx context.Context, report jobs.ProgressFunc) (any, error) {
		report(5, "Embedding query image")
		query, err := s.embedder.EmbedImage(ctx, req.Image)
		if err != nil {
			return nil, fmt.Errorf("embedding query image: %w", err)
		}
		report(35, "Query image embedded")

		report(55, "Matching products")
		matches := match.Image(query, products, s.search.SimilarityThreshold, s.search.TopK)
		report(90, "Matching complete")

		return s.finish(ctx, fp, matches, report)
	}
}

func (s *Service) videoTask(req Request, fp string, products []models.Product) jobs.Task {
	return func(ctx context.Context, report jobs.ProgressFunc) (any, error) {
		report(10, "Extracting video frames")
		frames, err := s.extractor.ExtractFrames(ctx, req.Video, s.video.FrameInterval, s.video.MaxFrames)
		if err != nil {
			return nil, fmt.Errorf("extracting frames: %w", err)
		}
		if len(frames) == 0 {
			return nil, errors.New("no frames extracted from video")
		}
		report(20, fmt.Sprintf("Extracted %d frames", len(frames)))

		embeddings, err := s.embedder.EmbedBatch(ctx, frames)
		if err != nil {
			return nil, fmt.Errorf("embedding frames: %w", err)
		}
		report(40, "Frames embedded")

		report(55, "Matching products")
		matches := match.Video(embeddings, products, s.search.SimilarityThreshold, s.search.TopK)
		report(85, "Matching complete")

		return s.finish(ctx, fp, matches, report)
	}
}

func (s *Service) textTask(fp string, products []models.Product) jobs.Task {
	return func(ctx context.Context, report jobs.ProgressFunc) (any, error) {
		report(20, "Matching products")
		matches := match.Text(products, s.search.TopK)
		report(60, "Matching complete")

		return s.finish(ctx, fp, matches, report)
	}
}

// finish caches the result under the request fingerprint and returns it as
// the job payload. The cache write happens before the job turns terminal so a
// poller that sees "completed" can always hit the cache. A failed cache write
// only logs; the result still reaches the job record.
func (s *Service) finish(ctx context.Context, fp string, matches []models.ProductMatch, report jobs.ProgressFunc) (any, error) {
	result := models.SearchResult{Matches: matches}
	report(95, "Caching result")

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	if err := s.cache.Set(ctx, cache.SearchResultKey(fp), data, s.search.ResultCacheTTL); err != nil {
		slog.Warn("result cache write failed", "fingerprint", fp, "error", err)
	}

	report(100, "Search completed")
	return result, nil
}

func (s *Service) cachedResult(ctx context.Context, fp string) (*models.SearchResult, bool) {
	data, found, err := s.cache.Get(ctx, cache.SearchResultKey(fp))
	if err != nil {
		slog.Debug("result cache read skipped", "fingerprint", fp, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var result models.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("corrupt cached result dropped", "fingerprint", fp, "error", err)
		_ = s.cache.Delete(ctx, cache.SearchResultKey(fp))
		return nil, false
	}
	return &result, true
}
