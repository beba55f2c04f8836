package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"nighttangerine-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNoItems       = errors.New("order must contain at least one item")
	ErrEmptyImport   = errors.New("orders array is required")
)

// CreateOrderItem is the caller-supplied input for one order line. Price is
// trusted as the current price at order-placement time; Name falls back to
// the product ID string when absent.
type CreateOrderItem struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// ImportOrder is one externally sourced order record in a bulk import batch.
// ID, Number, Status and CreatedAt are caller-chosen and inserted verbatim.
type ImportOrder struct {
	ID        uuid.UUID
	Number    int
	Status    domain.OrderStatus
	Hidden    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []CreateOrderItem
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, items []CreateOrderItem) (*domain.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindActive(ctx context.Context, includeHidden bool) ([]*domain.Order, error)
	FindFinished(ctx context.Context, includeHidden bool, limit int) ([]*domain.Order, error)
	MarkFinished(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BulkImport(ctx context.Context, orders []ImportOrder) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, number, status, hidden, created_at, updated_at`

// querier is the subset of sql.DB/sql.Tx used by the order queries, so the
// same helpers serve both transactional and plain reads.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Create inserts a new order with its items in one transaction. The ticket
// number is assigned as max(existing numbers)+1 inside the same transaction;
// conflict avoidance beyond that relies on the unique constraint on number.
func (r *orderRepository) Create(ctx context.Context, items []CreateOrderItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	number, err := nextOrderNumber(ctx, tx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.New(),
		Number:    number,
		Status:    domain.StatusPreparing,
		Hidden:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO orders (id, number, status, hidden, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.Number, order.Status, order.Hidden, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	order.Items, err = insertOrderItems(ctx, tx, order.ID, items, nil)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return order, nil
}

// FindByID retrieves a single order with its items, hidden or not.
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id = $1`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	items, err := fetchItems(ctx, r.db, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []*domain.OrderItem{}
	}

	return order, nil
}

// FindActive retrieves orders that are not finished, newest number first,
// with items attached via one batched query.
func (r *orderRepository) FindActive(ctx context.Context, includeHidden bool) ([]*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE status <> 'finished'`, orderColumns)
	if !includeHidden {
		query += ` AND hidden = FALSE`
	}
	query += ` ORDER BY number DESC`

	return r.queryOrdersWithItems(ctx, query)
}

// FindFinished retrieves finished orders, newest number first, capped at
// limit rows (<= 0 means no cap).
func (r *orderRepository) FindFinished(ctx context.Context, includeHidden bool, limit int) ([]*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE status = 'finished'`, orderColumns)
	if !includeHidden {
		query += ` AND hidden = FALSE`
	}
	query += ` ORDER BY number DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	return r.queryOrdersWithItems(ctx, query)
}

// MarkFinished transitions an order to finished and refreshes updated_at.
// Finishing an already-finished order is a no-op success.
func (r *orderRepository) MarkFinished(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := fmt.Sprintf(`
		UPDATE orders SET status = 'finished', updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, orderColumns)

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to finish order: %w", err)
	}

	items, err := fetchItems(ctx, r.db, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	if order.Items == nil {
		order.Items = []*domain.OrderItem{}
	}

	return order, nil
}

// Delete soft-deletes an order by setting hidden. The row and its items stay
// in place and remain readable by ID and by includeHidden listings.
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE orders SET hidden = TRUE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// BulkImport merges a batch of externally sourced orders in one transaction.
//
// Pass 1 resolves products: an incoming product ID that already exists is
// reused as-is; otherwise an existing product with the same name is aliased
// (the incoming ID is remapped onto it); otherwise a new product row is
// created under category "imported". Pass 2 upserts the orders, replacing
// items wholesale for existing order IDs and inserting new rows verbatim for
// unknown ones, with item product IDs run through the remapping table.
func (r *orderRepository) BulkImport(ctx context.Context, orders []ImportOrder) ([]*domain.Order, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyImport
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	remap, err := resolveImportProducts(ctx, tx, orders)
	if err != nil {
		return nil, err
	}

	imported := make([]*domain.Order, 0, len(orders))
	for _, data := range orders {
		order, err := upsertImportedOrder(ctx, tx, data, remap)
		if err != nil {
			return nil, err
		}
		imported = append(imported, order)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	return imported, nil
}

// resolveImportProducts builds the productID -> productID remapping table for
// an import batch, creating product rows for products unknown by both ID and
// name.
func resolveImportProducts(ctx context.Context, tx *sql.Tx, orders []ImportOrder) (map[uuid.UUID]uuid.UUID, error) {
	type productInfo struct {
		name  string
		price decimal.Decimal
	}

	incoming := map[uuid.UUID]productInfo{}
	for _, order := range orders {
		for _, item := range order.Items {
			name := item.Name
			if name == "" {
				name = item.ProductID.String()
			}
			incoming[item.ProductID] = productInfo{name: name, price: item.Price}
		}
	}

	ids := make([]uuid.UUID, 0, len(incoming))
	names := make([]string, 0, len(incoming))
	for id, info := range incoming {
		ids = append(ids, id)
		names = append(names, info.name)
	}

	existingByID, err := lookupProductIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	existingByName, err := lookupProductNames(ctx, tx, names)
	if err != nil {
		return nil, err
	}

	remap := make(map[uuid.UUID]uuid.UUID, len(incoming))
	for id, info := range incoming {
		switch {
		case existingByID[id]:
			remap[id] = id
		case existingByName[info.name] != uuid.Nil:
			remap[id] = existingByName[info.name]
		default:
			now := time.Now()
			_, err := tx.ExecContext(
				ctx,
				`INSERT INTO products (id, name, price, category, available, hidden, created_at, updated_at)
				 VALUES ($1, $2, $3, 'imported', TRUE, FALSE, $4, $5)`,
				id, info.name, info.price, now, now,
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create imported product %s: %w", id, err)
			}
			remap[id] = id
		}
	}

	return remap, nil
}

// upsertImportedOrder replaces or inserts one imported order and its items,
// applying the product remapping table built in the resolution pass.
func upsertImportedOrder(ctx context.Context, tx *sql.Tx, data ImportOrder, remap map[uuid.UUID]uuid.UUID) (*domain.Order, error) {
	updatedAt := data.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = data.CreatedAt
	}

	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, data.ID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check order %s: %w", data.ID, err)
	}

	var order *domain.Order
	if exists {
		// Full replacement: drop the old item set, rewrite the order row.
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, data.ID); err != nil {
			return nil, fmt.Errorf("failed to clear items for order %s: %w", data.ID, err)
		}

		query := fmt.Sprintf(`
			UPDATE orders SET number = $2, status = $3, hidden = $4, created_at = $5, updated_at = NOW()
			WHERE id = $1
			RETURNING %s
		`, orderColumns)
		order, err = scanOrder(tx.QueryRowContext(ctx, query, data.ID, data.Number, data.Status, data.Hidden, data.CreatedAt))
		if err != nil {
			return nil, fmt.Errorf("failed to replace order %s: %w", data.ID, err)
		}
	} else {
		// Caller-supplied number is inserted verbatim; collisions with
		// existing numbers surface as a constraint violation that aborts
		// the whole batch.
		query := fmt.Sprintf(`
			INSERT INTO orders (id, number, status, hidden, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING %s
		`, orderColumns)
		order, err = scanOrder(tx.QueryRowContext(ctx, query, data.ID, data.Number, data.Status, data.Hidden, data.CreatedAt, updatedAt))
		if err != nil {
			return nil, fmt.Errorf("failed to insert order %s: %w", data.ID, err)
		}
	}

	order.Items, err = insertOrderItems(ctx, tx, order.ID, data.Items, remap)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// insertOrderItems inserts one row per input item, snapshotting name and
// price. When remap is non-nil, product IDs are translated through it.
func insertOrderItems(ctx context.Context, q querier, orderID uuid.UUID, items []CreateOrderItem, remap map[uuid.UUID]uuid.UUID) ([]*domain.OrderItem, error) {
	inserted := make([]*domain.OrderItem, 0, len(items))
	for _, item := range items {
		productID := item.ProductID
		if remap != nil {
			if mapped, ok := remap[item.ProductID]; ok {
				productID = mapped
			}
		}

		name := item.Name
		if name == "" {
			name = item.ProductID.String()
		}

		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		row := &domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: productID,
			Name:      name,
			Price:     item.Price,
			Quantity:  quantity,
		}

		_, err := q.ExecContext(
			ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, price, quantity) VALUES ($1, $2, $3, $4, $5, $6)`,
			row.ID, row.OrderID, row.ProductID, row.Name, row.Price, row.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}

		inserted = append(inserted, row)
	}

	return inserted, nil
}

// nextOrderNumber computes max(number)+1 within the caller's transaction,
// starting at 1 when no orders exist.
func nextOrderNumber(ctx context.Context, q querier) (int, error) {
	var number int
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM orders`).Scan(&number)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next order number: %w", err)
	}
	return number, nil
}

func (r *orderRepository) queryOrdersWithItems(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	ids := []uuid.UUID{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	items, err := fetchItems(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	for _, order := range orders {
		order.Items = items[order.ID]
		if order.Items == nil {
			order.Items = []*domain.OrderItem{}
		}
	}

	return orders, nil
}

// fetchItems loads the items for a set of orders in one query and groups
// them by order ID.
func fetchItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]*domain.OrderItem, error) {
	grouped := map[uuid.UUID][]*domain.OrderItem{}
	if len(orderIDs) == 0 {
		return grouped, nil
	}

	placeholders := make([]string, len(orderIDs))
	args := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, order_id, product_id, name, price, quantity
		FROM order_items
		WHERE order_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item := &domain.OrderItem{}
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.Price,
			&item.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		grouped[item.OrderID] = append(grouped[item.OrderID], item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return grouped, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.Number,
		&order.Status,
		&order.Hidden,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// lookupProductIDs returns the subset of ids that already exist in products.
func lookupProductIDs(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	existing := map[uuid.UUID]bool{}
	if len(ids) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT id FROM products WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up products by ID: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product ID: %w", err)
		}
		existing[id] = true
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product IDs: %w", err)
	}

	return existing, nil
}

// lookupProductNames maps existing product names to their IDs. When several
// products share a name the last one scanned wins, matching the permissive
// matching the import path has always had.
func lookupProductNames(ctx context.Context, q querier, names []string) (map[string]uuid.UUID, error) {
	existing := map[string]uuid.UUID{}
	if len(names) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, name := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = name
	}

	query := fmt.Sprintf(`SELECT id, name FROM products WHERE name IN (%s)`, strings.Join(placeholders, ", "))
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up products by name: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan product name: %w", err)
		}
		existing[name] = id
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product names: %w", err)
	}

	return existing, nil
}
