package catalog_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/commercebridge/visearch/internal/catalog"
	"github.com/commercebridge/visearch/pkg/models"
)

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container with pgvector, runs migrations,
// and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("visearch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = catalog.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func embedding(fill float32) []float32 {
	v := make([]float32, 768)
	for i := range v {
		v[i] = fill
	}
	return v
}

func sampleProduct(name, category string, hashes ...string) *models.Product {
	p := &models.Product{
		ID:          uuid.New(),
		Name:        name,
		Price:       19.99,
		Description: "A " + name + " for testing",
		Category:    category,
	}
	for i, h := range hashes {
		p.ImageURLs = append(p.ImageURLs, "http://blob/products/"+h+".jpg")
		p.ImageHashes = append(p.ImageHashes, h)
		p.Embeddings = append(p.Embeddings, embedding(float32(i+1)*0.001))
	}
	return p
}

func TestInsertAndFind_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := catalog.NewPostgresStore(pool)
	ctx := context.Background()

	product := sampleProduct("red sneaker", "shoes", "hash-a", "hash-b")
	require.NoError(t, s.Insert(ctx, product))

	found, err := s.Find(ctx, catalog.Filter{})
	require.NoError(t, err)
	require.Len(t, found, 1)

	got := found[0]
	assert.Equal(t, product.ID, got.ID)
	assert.Equal(t, "red sneaker", got.Name)
	assert.Equal(t, []string{"hash-a", "hash-b"}, got.ImageHashes)
	require.Len(t, got.Embeddings, 2)
	assert.Len(t, got.Embeddings[0], 768)
	assert.InDelta(t, 0.001, got.Embeddings[0][0], 1e-6)
	assert.InDelta(t, 0.002, got.Embeddings[1][0], 1e-6)
}

func TestFind_QueryMatchesAnyWord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := catalog.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleProduct("Red Sneaker", "shoes", "h1")))
	require.NoError(t, s.Insert(ctx, sampleProduct("Blue Jacket", "apparel", "h2")))
	require.NoError(t, s.Insert(ctx, sampleProduct("Green Hat", "apparel", "h3")))

	// Any word of the query matches, case-insensitively.
	found, err := s.Find(ctx, catalog.Filter{Query: "red jacket"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	names := []string{found[0].Name, found[1].Name}
	assert.Contains(t, names, "Red Sneaker")
	assert.Contains(t, names, "Blue Jacket")
}

func TestFind_EmptyFilterReturnsWholeCatalog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := catalog.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleProduct("Sneaker", "shoes", "c1")))
	require.NoError(t, s.Insert(ctx, sampleProduct("Boot", "shoes", "c2")))
	require.NoError(t, s.Insert(ctx, sampleProduct("Jacket", "apparel", "c3")))

	found, err := s.Find(ctx, catalog.Filter{})
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "Sneaker", found[0].Name)
	assert.Equal(t, "apparel", found[2].Category)
}

func TestInsert_DuplicateImageHash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := catalog.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, sampleProduct("First", "misc", "dup-hash")))

	err := s.Insert(ctx, sampleProduct("Second", "misc", "dup-hash"))
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrDuplicateImage)

	// The failed insert rolled back entirely.
	found, err := s.Find(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestImageHashExists(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := catalog.NewPostgresStore(pool)
	ctx := context.Background()

	exists, err := s.ImageHashExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Insert(ctx, sampleProduct("Thing", "misc", "present")))

	exists, err = s.ImageHashExists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, exists)
}
