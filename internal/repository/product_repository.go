package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tennis-club-api/internal/models"
)

// ProductRepository persists training products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository constructs the repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByID returns a product by id.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	const query = `SELECT id, center_id, name, training_type, capacity, list_price, created_at FROM products WHERE id = $1`
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &product, nil
}

// ListByCenter returns products offered by a center.
func (r *ProductRepository) ListByCenter(ctx context.Context, centerID string) ([]models.Product, error) {
	const query = `SELECT id, center_id, name, training_type, capacity, list_price, created_at
FROM products WHERE center_id = $1 ORDER BY name ASC`
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, centerID); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// CreateBatch inserts products inside the caller's transaction.
func (r *ProductRepository) CreateBatch(ctx context.Context, exec sqlx.ExtContext, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}
	target := exec
	if target == nil {
		target = r.db
	}
	now := time.Now().UTC()

	const query = `INSERT INTO products (id, center_id, name, training_type, capacity, list_price, created_at)
VALUES (:id, :center_id, :name, :training_type, :capacity, :list_price, :created_at)`
	for i := range products {
		product := &products[i]
		if product.ID == "" {
			product.ID = uuid.NewString()
		}
		if product.CreatedAt.IsZero() {
			product.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, product); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
	}
	return nil
}
