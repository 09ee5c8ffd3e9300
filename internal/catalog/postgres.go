package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/commercebridge/visearch/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5 with pgvector
// embedding columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Find(ctx context.Context, filter Filter) ([]models.Product, error) {
	query := `SELECT p.id, p.name, p.price, p.description, p.category, p.created_at, p.updated_at,
	                 i.image_url, i.image_hash, i.embedding
	          FROM products p
	          JOIN product_images i ON i.product_id = p.id`

	var args []any

	if filter.Query != "" {
		var wordConds []string
		for _, word := range strings.Fields(filter.Query) {
			args = append(args, "%"+word+"%")
			ref := fmt.Sprintf("$%d", len(args))
			wordConds = append(wordConds, fmt.Sprintf("p.name ILIKE %s OR p.description ILIKE %s", ref, ref))
		}
		query += " WHERE " + strings.Join(wordConds, " OR ")
	}
	query += " ORDER BY p.created_at, p.id, i.position"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			p        models.Product
			imageURL string
			hash     string
			vec      pgvector.Vector
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.Category,
			&p.CreatedAt, &p.UpdatedAt, &imageURL, &hash, &vec); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}

		i, ok := index[p.ID]
		if !ok {
			i = len(products)
			index[p.ID] = i
			products = append(products, p)
		}
		products[i].ImageURLs = append(products[i].ImageURLs, imageURL)
		products[i].ImageHashes = append(products[i].ImageHashes, hash)
		products[i].Embeddings = append(products[i].Embeddings, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (s *PostgresStore) Insert(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin insert product: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO products (id, name, price, description, category, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		product.ID, product.Name, product.Price, product.Description, product.Category,
		product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	for i := range product.ImageURLs {
		_, err = tx.Exec(ctx,
			`INSERT INTO product_images (id, product_id, position, image_url, image_hash, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), product.ID, i, product.ImageURLs[i], product.ImageHashes[i],
			pgvector.NewVector(product.Embeddings[i]), now)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: %s", ErrDuplicateImage, product.ImageHashes[i])
			}
			return fmt.Errorf("insert product image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) ImageHashExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM product_images WHERE image_hash = $1)`, hash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check image hash: %w", err)
	}
	return exists, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
