// Package video obtains sampled frames from query videos via an external
// frame-extraction sidecar. Sampling policy (one frame roughly every interval
// seconds, capped at maxFrames) is enforced by the sidecar.
package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrUnavailable     = errors.New("frame extractor unavailable")
	ErrTimeout         = errors.New("frame extraction timeout")
	ErrInvalidResponse = errors.New("frame extractor returned invalid response")
)

// Extractor samples frames from raw video bytes. The result is bounded by
// maxFrames and ordered by frame timestamp.
type Extractor interface {
	ExtractFrames(ctx context.Context, video []byte, interval time.Duration, maxFrames int) ([][]byte, error)
}

// HTTPExtractor implements Extractor against the extraction sidecar's HTTP API.
type HTTPExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPExtractor creates a new frame extractor client.
func NewHTTPExtractor(baseURL string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type extractResponse struct {
	Frames []string `json:"frames"`
}

func (e *HTTPExtractor) ExtractFrames(ctx context.Context, video []byte, interval time.Duration, maxFrames int) ([][]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("interval_seconds", strconv.Itoa(int(interval.Seconds()))); err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	if err := mw.WriteField("max_frames", strconv.Itoa(maxFrames)); err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	part, err := mw.CreateFormFile("video", "query.mp4")
	if err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	if _, err := part.Write(video); err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/frames", &body)
	if err != nil {
		return nil, fmt.Errorf("building extract request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(parsed.Frames) > maxFrames {
		return nil, fmt.Errorf("%w: got %d frames, limit %d", ErrInvalidResponse, len(parsed.Frames), maxFrames)
	}

	frames := make([][]byte, len(parsed.Frames))
	for i, enc := range parsed.Frames {
		frame, err := base64.StdEncoding.DecodeString(enc)
		if err != nil {
			return nil, fmt.Errorf("%w: frame %d: %v", ErrInvalidResponse, i, err)
		}
		frames[i] = frame
	}
	return frames, nil
}

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

var _ Extractor = (*HTTPExtractor)(nil)

// MockExtractor satisfies Extractor for testing.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, video []byte, interval time.Duration, maxFrames int) ([][]byte, error)
}

func (m *MockExtractor) ExtractFrames(ctx context.Context, video []byte, interval time.Duration, maxFrames int) ([][]byte, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, video, interval, maxFrames)
	}
	return [][]byte{video}, nil
}

var _ Extractor = (*MockExtractor)(nil)
