// Package main is the entrypoint for the visearch API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commercebridge/visearch/internal/api"
	"github.com/commercebridge/visearch/internal/api/handler"
	mw "github.com/commercebridge/visearch/internal/api/middleware"
	"github.com/commercebridge/visearch/internal/api/response"
	"github.com/commercebridge/visearch/internal/blob"
	"github.com/commercebridge/visearch/internal/cache"
	"github.com/commercebridge/visearch/internal/catalog"
	"github.com/commercebridge/visearch/internal/config"
	"github.com/commercebridge/visearch/internal/embed"
	"github.com/commercebridge/visearch/internal/ingest"
	"github.com/commercebridge/visearch/internal/jobs"
	"github.com/commercebridge/visearch/internal/search"
	"github.com/commercebridge/visearch/internal/video"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on anything invalid
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "embed_provider", cfg.Embed.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := catalog.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := catalog.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Connect to blob storage
	uploader, err := blob.NewMinIOUploader(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("connect blob storage: %w", err)
	}
	slog.Info("blob storage connected", "bucket", cfg.Blob.Bucket)

	// 6. Create embedding provider and frame extractor
	embedder, err := embed.NewEmbedder(cfg.Embed)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	slog.Info("embedder initialized", "provider", embedder.Name(), "dimension", embedder.Dimension())

	extractor := video.NewHTTPExtractor(cfg.Video.ExtractorBaseURL, cfg.Video.Timeout)

	// 7. Create store and job pool
	store := catalog.NewPostgresStore(pool)

	pool2 := jobs.NewPool(jobs.NewRegistry(), redisCache,
		cfg.Jobs.Workers, cfg.Jobs.QueueSize, cfg.Search.ProgressTTL)
	pool2.Start(ctx)
	defer pool2.Stop()
	slog.Info("job pool started", "workers", cfg.Jobs.Workers, "queue_size", cfg.Jobs.QueueSize)

	// 8. Build services and router
	searchSvc := search.NewService(store, redisCache, pool2, embedder, extractor, cfg.Search, cfg.Video)
	ingestSvc := ingest.NewService(store, uploader, embedder, pool2)

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),

		HealthHandler:     healthHandler(store, redisCache),
		SearchHandler:     handler.NewSearchHandler(searchSvc, cfg.Server.MaxUploadSize),
		AddProductHandler: handler.NewAddProductHandler(ingestSvc, cfg.Server.MaxUploadSize),
		GetJobHandler:     handler.NewGetJobHandler(searchSvc),
		ProgressHandler:   handler.NewProgressHandler(searchSvc),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout; the deferred pool.Stop then drains
	// queued jobs before the process exits.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s catalog.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
