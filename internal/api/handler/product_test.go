package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/commercebridge/visearch/internal/ingest"
	"github.com/commercebridge/visearch/pkg/models"
)

// --- mock Ingestor ---

type mockIngestor struct {
	fn func(ctx context.Context, req ingest.AddRequest) (uuid.UUID, error)
}

func (m *mockIngestor) SubmitAdd(ctx context.Context, req ingest.AddRequest) (uuid.UUID, error) {
	return m.fn(ctx, req)
}

func acceptingIngestor(id uuid.UUID) *mockIngestor {
	return &mockIngestor{fn: func(_ context.Context, _ ingest.AddRequest) (uuid.UUID, error) {
		return id, nil
	}}
}

// --- tests ---

func TestAddProductHandler_Accepted(t *testing.T) {
	id := uuid.New()
	h := NewAddProductHandler(acceptingIngestor(id), testMaxUpload)
	rec := httptest.NewRecorder()

	req := multipartReq(t, "/api/v1/products",
		map[string]string{"name": "sneaker", "price": "49.99", "category": "shoes"},
		formFile{field: "images", filename: "front.jpg", contentType: "image/jpeg", data: []byte("front")})
	h.ServeHTTP(rec, req)

	data := parseData(t, rec, http.StatusAccepted)
	if data["job_id"] != id.String() {
		t.Errorf("unexpected job_id: %v", data["job_id"])
	}
	if data["status"] != models.JobStatusPending {
		t.Errorf("unexpected status: %v", data["status"])
	}
}

func TestAddProductHandler_PassesFields(t *testing.T) {
	var captured ingest.AddRequest
	mock := &mockIngestor{fn: func(_ context.Context, req ingest.AddRequest) (uuid.UUID, error) {
		captured = req
		return uuid.New(), nil
	}}

	h := NewAddProductHandler(mock, testMaxUpload)
	rec := httptest.NewRecorder()

	req := multipartReq(t, "/api/v1/products",
		map[string]string{
			"name":        "red sneaker",
			"price":       "79.50",
			"description": "a red sneaker",
			"category":    "shoes",
		},
		formFile{field: "images", filename: "front.jpg", contentType: "image/jpeg", data: []byte("front")},
		formFile{field: "images", filename: "side.png", contentType: "image/png", data: []byte("side")})
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Name != "red sneaker" {
		t.Errorf("unexpected name: %q", captured.Name)
	}
	if captured.Price != 79.50 {
		t.Errorf("unexpected price: %v", captured.Price)
	}
	if captured.Description != "a red sneaker" {
		t.Errorf("unexpected description: %q", captured.Description)
	}
	if captured.Category != "shoes" {
		t.Errorf("unexpected category: %q", captured.Category)
	}
	if len(captured.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(captured.Images))
	}
	if string(captured.Images[0].Data) != "front" {
		t.Errorf("first image not passed through: %q", captured.Images[0].Data)
	}
	if captured.Images[1].ContentType != "image/png" {
		t.Errorf("content type not passed through: %q", captured.Images[1].ContentType)
	}
}

func TestAddProductHandler_MissingName(t *testing.T) {
	h := NewAddProductHandler(acceptingIngestor(uuid.New()), testMaxUpload)
	rec := httptest.NewRecorder()

	req := multipartReq(t, "/api/v1/products", map[string]string{"price": "10"},
		formFile{field: "images", filename: "a.jpg", contentType: "image/jpeg", data: []byte("a")})
	h.ServeHTTP(rec, req)

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if code != "INVALID_PRODUCT" {
		t.Errorf("expected INVALID_PRODUCT, got %s", code)
	}
}

func TestAddProductHandler_NoImages(t *testing.T) {
	h := NewAddProductHandler(acceptingIngestor(uuid.New()), testMaxUpload)
	rec := httptest.NewRecorder()

	req := multipartReq(t, "/api/v1/products", map[string]string{"name": "sneaker"})
	h.ServeHTTP(rec, req)

	status, code := parseErr(t, rec)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if code != "INVALID_PRODUCT" {
		t.Errorf("expected INVALID_PRODUCT, got %s", code)
	}
}

func TestAddProductHandler_BadPrice(t *testing.T) {
	tests := []string{"abc", "-5", "1.2.3"}
	for _, price := range tests {
		t.Run(price, func(t *testing.T) {
			h := NewAddProductHandler(acceptingIngestor(uuid.New()), testMaxUpload)
			rec := httptest.NewRecorder()

			req := multipartReq(t, "/api/v1/products",
				map[string]string{"name": "sneaker", "price": price},
				formFile{field: "images", filename: "a.jpg", contentType: "image/jpeg", data: []byte("a")})
			h.ServeHTTP(rec, req)

			status, code := parseErr(t, rec)
			if status != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", status)
			}
			if code != "INVALID_PRODUCT" {
				t.Errorf("expected INVALID_PRODUCT, got %s", code)
			}
		})
	}
}

func TestAddProductHandler_PriceOptional(t *testing.T) {
	var captured ingest.AddRequest
	mock := &mockIngestor{fn: func(_ context.Context, req ingest.AddRequest) (uuid.UUID, error) {
		captured = req
		return uuid.New(), nil
	}}

	h := NewAddProductHandler(mock, testMaxUpload)
	rec := httptest.NewRecorder()

	req := multipartReq(t, "/api/v1/products", map[string]string{"name": "freebie"},
		formFile{field: "images", filename: "a.jpg", contentType: "image/jpeg", data: []byte("a")})
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Price != 0 {
		t.Errorf("expected zero price, got %v", captured.Price)
	}
}
