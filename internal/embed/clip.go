package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/commercebridge/visearch/internal/config"
)

// CLIPClient implements Embedder against a CLIP inference sidecar's HTTP API.
type CLIPClient struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

// NewCLIPClient creates a new CLIP sidecar client.
func NewCLIPClient(cfg config.CLIPConfig, timeout time.Duration, dimension int) *CLIPClient {
	return &CLIPClient{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *CLIPClient) Name() string { return "clip" }

func (c *CLIPClient) Dimension() int { return c.dimension }

type embedRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *CLIPClient) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, [][]byte{image})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *CLIPClient) EmbedBatch(ctx context.Context, images [][]byte) ([][]float32, error) {
	if len(images) == 0 {
		return [][]float32{}, nil
	}

	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Images: encoded})
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if len(parsed.Embeddings) != len(images) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			ErrInvalidResponse, len(images), len(parsed.Embeddings))
	}
	for i, vec := range parsed.Embeddings {
		if len(vec) != c.dimension {
			return nil, fmt.Errorf("%w: embedding %d has dimension %d, expected %d",
				ErrInvalidResponse, i, len(vec), c.dimension)
		}
	}

	return parsed.Embeddings, nil
}

// classifyError maps transport errors to sentinel errors.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

var _ Embedder = (*CLIPClient)(nil)
