package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nighttangerine-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidBackup = errors.New("invalid backup data format")

// ImportProduct is one product record in a backup payload. Unlike the bulk
// order import, backup products carry full fields and are upserted by ID
// without name aliasing.
type ImportProduct struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	Category  string
	Amount    *string
	Available bool
	Hidden    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BackupRepository moves whole-database snapshots in and out of the store.
type BackupRepository interface {
	Export(ctx context.Context) (orders []*domain.Order, products []*domain.Product, err error)
	Import(ctx context.Context, products []ImportProduct, orders []ImportOrder) (importedOrders, importedProducts int, err error)
	Counts(ctx context.Context) (orders, products, orderItems int, err error)
}

type backupRepository struct {
	db *sql.DB
}

// NewBackupRepository creates a new instance of BackupRepository
func NewBackupRepository(db *sql.DB) BackupRepository {
	return &backupRepository{db: db}
}

// Export reads every order (hidden included, items attached) and every
// product. The result is a complete snapshot suitable for re-import.
func (r *backupRepository) Export(ctx context.Context) ([]*domain.Order, []*domain.Product, error) {
	orderQuery := fmt.Sprintf(`SELECT %s FROM orders ORDER BY number DESC`, orderColumns)
	rows, err := r.db.QueryContext(ctx, orderQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to export orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating orders: %w", err)
	}

	items, err := fetchItems(ctx, r.db, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
		if order.Items == nil {
			order.Items = []*domain.OrderItem{}
		}
	}

	productQuery := fmt.Sprintf(`SELECT %s FROM products ORDER BY name`, productColumns)
	productRows, err := r.db.QueryContext(ctx, productQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to export products: %w", err)
	}
	defer productRows.Close()

	products := []*domain.Product{}
	for productRows.Next() {
		product, err := scanProduct(productRows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err = productRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating products: %w", err)
	}

	return orders, products, nil
}

// Import restores a backup in one transaction: products are upserted by ID
// first, then orders are replaced or inserted with their item sets. A payload
// with neither products nor orders is rejected as ErrInvalidBackup. Item
// product IDs are taken verbatim; a reference to a product missing from the
// backup surfaces as a constraint violation that rolls back the whole call.
func (r *backupRepository) Import(ctx context.Context, products []ImportProduct, orders []ImportOrder) (int, int, error) {
	if len(products) == 0 && len(orders) == 0 {
		return 0, 0, ErrInvalidBackup
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	importedProducts := 0
	for _, product := range products {
		if err := upsertBackupProduct(ctx, tx, product); err != nil {
			return 0, 0, err
		}
		importedProducts++
	}

	importedOrders := 0
	for _, order := range orders {
		if _, err := upsertImportedOrder(ctx, tx, order, nil); err != nil {
			return 0, 0, err
		}
		importedOrders++
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit backup import: %w", err)
	}

	return importedOrders, importedProducts, nil
}

// Counts returns the row counts exposed by the backup info endpoint.
func (r *backupRepository) Counts(ctx context.Context) (int, int, int, error) {
	var orders, products, orderItems int

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&products); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count products: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&orderItems); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count order items: %w", err)
	}

	return orders, products, orderItems, nil
}

func upsertBackupProduct(ctx context.Context, tx *sql.Tx, product ImportProduct) error {
	category := product.Category
	if category == "" {
		category = "imported"
	}

	createdAt := product.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := product.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, product.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check product %s: %w", product.ID, err)
	}

	if exists {
		_, err = tx.ExecContext(
			ctx,
			`UPDATE products SET name = $2, price = $3, category = $4, amount = $5, available = $6, hidden = $7, updated_at = NOW() WHERE id = $1`,
			product.ID, product.Name, product.Price, category, product.Amount, product.Available, product.Hidden,
		)
		if err != nil {
			return fmt.Errorf("failed to update product %s: %w", product.ID, err)
		}
		return nil
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO products (id, name, price, category, amount, available, hidden, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		product.ID, product.Name, product.Price, category, product.Amount, product.Available, product.Hidden, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert product %s: %w", product.ID, err)
	}
	return nil
}
