package embed

import (
	"context"
	"crypto/sha256"
	"math"
)

// MockEmbedder satisfies Embedder for testing and local development. Without
// overrides it derives a deterministic unit vector from the SHA-256 of the
// image bytes, so identical inputs always embed identically.
type MockEmbedder struct {
	Dim            int
	EmbedImageFunc func(ctx context.Context, image []byte) ([]float32, error)
	EmbedBatchFunc func(ctx context.Context, images [][]byte) ([][]float32, error)
}

// NewMockEmbedder returns a MockEmbedder with deterministic default behavior.
func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{Dim: dimension}
}

func (m *MockEmbedder) Name() string { return "mock" }

func (m *MockEmbedder) Dimension() int { return m.Dim }

func (m *MockEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if m.EmbedImageFunc != nil {
		return m.EmbedImageFunc(ctx, image)
	}
	return deterministicVector(image, m.Dim), nil
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error) {
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, images)
	}
	vectors := make([][]float32, len(images))
	for i, img := range images {
		vectors[i] = deterministicVector(img, m.Dim)
	}
	return vectors, nil
}

// deterministicVector expands a content hash into a unit-length vector.
func deterministicVector(data []byte, dim int) []float32 {
	sum := sha256.Sum256(data)
	vec := make([]float32, dim)
	var norm float64
	for i := 0; i < dim; i++ {
		v := float64(sum[i%len(sum)])/255.0 - 0.5
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

var _ Embedder = (*MockEmbedder)(nil)
