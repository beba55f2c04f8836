package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nighttangerine-pos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrProductHasOrders blocks hard deletion of a product referenced by
	// order items. Historical items must always resolve to a product row.
	ErrProductHasOrders = errors.New("product has order history")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindAll(ctx context.Context) ([]*domain.Product, error)
	FindAvailable(ctx context.Context) ([]*domain.Product, error)
	FindByCategory(ctx context.Context, category string) ([]*domain.Product, error)
	HasOrderReferences(ctx context.Context, id uuid.UUID) (bool, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, price, category, amount, available, hidden, image_url, image_data, image_mime_type, created_at, updated_at`

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, price, category, amount, available, hidden, image_url, image_data, image_mime_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.Category,
		product.Amount,
		product.Available,
		product.Hidden,
		product.ImageURL,
		product.ImageData,
		product.ImageMimeType,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update writes the full product row back to the database. Partial-field
// merging happens in the service layer before this is called.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, price = $3, category = $4, amount = $5, available = $6,
		    hidden = $7, image_url = $8, image_data = $9, image_mime_type = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.Category,
		product.Amount,
		product.Available,
		product.Hidden,
		product.ImageURL,
		product.ImageData,
		product.ImageMimeType,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete hard-deletes a product. Products referenced by order items cannot be
// deleted; callers should hide them instead.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	referenced, err := r.HasOrderReferences(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return ErrProductHasOrders
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindAll retrieves every product, sorted by category then name.
func (r *productRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products ORDER BY category, name`, productColumns)
	return r.queryProducts(ctx, query)
}

// FindAvailable retrieves products that are not hidden, sorted by category then name.
func (r *productRepository) FindAvailable(ctx context.Context) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE hidden = FALSE ORDER BY category, name`, productColumns)
	return r.queryProducts(ctx, query)
}

// FindByCategory retrieves products in a category, sorted by name.
func (r *productRepository) FindByCategory(ctx context.Context, category string) ([]*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE category = $1 ORDER BY name`, productColumns)
	return r.queryProducts(ctx, query, category)
}

// HasOrderReferences reports whether any order item references the product.
func (r *productRepository) HasOrderReferences(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product references: %w", err)
	}
	return exists, nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Category,
		&product.Amount,
		&product.Available,
		&product.Hidden,
		&product.ImageURL,
		&product.ImageData,
		&product.ImageMimeType,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}
