package catalog

import (
	"context"
	"errors"

	"github.com/commercebridge/visearch/pkg/models"
)

var ErrDuplicateImage = errors.New("duplicate image hash")

// Store is the catalog data access interface. Matching operates on immutable
// snapshots returned by Find; the pipeline never mutates products it reads.
type Store interface {
	Ping(ctx context.Context) error

	// Find returns products matching the filter. With an empty filter the
	// whole catalog is returned. Image slices are parallel and ordered by
	// upload position.
	Find(ctx context.Context, filter Filter) ([]models.Product, error)

	// Insert stores a product and its images transactionally.
	Insert(ctx context.Context, product *models.Product) error

	// ImageHashExists reports whether any catalog image has the given
	// SHA-256 content hash.
	ImageHashExists(ctx context.Context, hash string) (bool, error)
}

// Filter narrows a Find. Query is a free-text phrase: a product matches when
// any word appears in its name or description, case-insensitively. An empty
// filter matches the whole catalog.
type Filter struct {
	Query string
}
