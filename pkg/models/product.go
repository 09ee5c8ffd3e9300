package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry with one or more images. The three image slices
// are parallel: index i holds the URL, SHA-256 content hash, and embedding of
// the same image.
type Product struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Price       float64     `json:"price"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	ImageURLs   []string    `json:"image_urls"`
	ImageHashes []string    `json:"image_hashes"`
	Embeddings  [][]float32 `json:"embeddings"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
