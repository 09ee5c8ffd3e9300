// Package embed produces fixed-dimension embeddings for images via a
// configurable provider. The CLIP provider talks to an inference sidecar
// over HTTP; the mock provider is deterministic and in-memory for tests.
package embed

import (
	"context"
	"fmt"

	"github.com/commercebridge/visearch/internal/config"
)

// Embedder converts raw image bytes into fixed-dimension embedding vectors.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	// EmbedBatch embeds multiple images in one call. The result has exactly
	// one vector per input image, in input order.
	EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error)
}

// NewEmbedder constructs the appropriate embedding provider based on config.
// Called once at server startup.
func NewEmbedder(cfg config.EmbedConfig) (Embedder, error) {
	switch cfg.Provider {
	case "clip":
		return NewCLIPClient(cfg.CLIP, cfg.Timeout, cfg.Dimension), nil
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embed provider %q: must be one of clip, mock", cfg.Provider)
	}
}
