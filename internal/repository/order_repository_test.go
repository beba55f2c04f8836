package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"nighttangerine-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seedProduct inserts a product row directly, bypassing the repository, so
// order tests do not depend on product repository behavior.
func seedProduct(t *testing.T, name string, price string) *domain.Product {
	t.Helper()

	d, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("bad price %q: %v", price, err)
	}

	now := time.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     d,
		Category:  "drinks",
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = testDB.Exec(
		`INSERT INTO products (id, name, price, category, available, hidden, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		product.ID, product.Name, product.Price, product.Category, product.Available, product.Hidden,
		product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	return product
}

func orderItem(product *domain.Product, quantity int) CreateOrderItem {
	return CreateOrderItem{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  quantity,
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)

	_, err := repo.Create(context.Background(), nil)
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}

	_, err = repo.Create(context.Background(), []CreateOrderItem{})
	if !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems for empty slice, got %v", err)
	}
}

func TestCreateOrderAssignsSequentialNumbers(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	product := seedProduct(t, "Espresso", "2.50")

	for want := 1; want <= 5; want++ {
		order, err := repo.Create(ctx, []CreateOrderItem{orderItem(product, 1)})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		if order.Number != want {
			t.Errorf("expected order number %d, got %d", want, order.Number)
		}
		if order.Status != domain.StatusPreparing {
			t.Errorf("expected new order to be preparing, got %s", order.Status)
		}
	}
}

func TestCreateOrderDefaultsQuantityAndName(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	product := seedProduct(t, "Flat White", "3.80")

	order, err := repo.Create(context.Background(), []CreateOrderItem{
		{ProductID: product.ID, Price: product.Price, Quantity: 0},
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	if order.Items[0].Quantity != 1 {
		t.Errorf("expected quantity to default to 1, got %d", order.Items[0].Quantity)
	}
	if order.Items[0].Name != product.ID.String() {
		t.Errorf("expected name to fall back to product ID, got %q", order.Items[0].Name)
	}
}

func TestMarkFinishedIsIdempotent(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	product := seedProduct(t, "Latte", "4.20")

	order, err := repo.Create(ctx, []CreateOrderItem{orderItem(product, 2)})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	first, err := repo.MarkFinished(ctx, order.ID)
	if err != nil {
		t.Fatalf("first finish failed: %v", err)
	}
	if first.Status != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", first.Status)
	}

	second, err := repo.MarkFinished(ctx, order.ID)
	if err != nil {
		t.Fatalf("second finish failed: %v", err)
	}
	if second.Status != domain.StatusFinished {
		t.Fatalf("expected finished after repeat, got %s", second.Status)
	}

	if _, err := repo.MarkFinished(ctx, uuid.New()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for unknown ID, got %v", err)
	}
}

func TestDeleteHidesOrderWithoutRemovingIt(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	product := seedProduct(t, "Mocha", "4.50")

	order, err := repo.Create(ctx, []CreateOrderItem{orderItem(product, 1)})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	if err := repo.Delete(ctx, order.ID); err != nil {
		t.Fatalf("failed to delete order: %v", err)
	}

	// Hidden orders leave the default listing...
	visible, err := repo.FindActive(ctx, false)
	if err != nil {
		t.Fatalf("failed to list active orders: %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("expected hidden order to be excluded, got %d orders", len(visible))
	}

	// ...but stay retrievable by ID and via includeHidden.
	fetched, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("hidden order should still be retrievable: %v", err)
	}
	if !fetched.Hidden {
		t.Error("expected order to be marked hidden")
	}

	all, err := repo.FindActive(ctx, true)
	if err != nil {
		t.Fatalf("failed to list with hidden: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 order with includeHidden, got %d", len(all))
	}

	if err := repo.Delete(ctx, uuid.New()); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for unknown ID, got %v", err)
	}
}

func TestFindFinishedRespectsLimit(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	product := seedProduct(t, "Tea", "2.00")

	for i := 0; i < 5; i++ {
		order, err := repo.Create(ctx, []CreateOrderItem{orderItem(product, 1)})
		if err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		if _, err := repo.MarkFinished(ctx, order.ID); err != nil {
			t.Fatalf("failed to finish order: %v", err)
		}
	}

	finished, err := repo.FindFinished(ctx, false, 3)
	if err != nil {
		t.Fatalf("failed to list finished orders: %v", err)
	}
	if len(finished) != 3 {
		t.Fatalf("expected 3 finished orders, got %d", len(finished))
	}

	// Newest numbers first
	if finished[0].Number != 5 || finished[2].Number != 3 {
		t.Errorf("expected numbers 5..3, got %d..%d", finished[0].Number, finished[2].Number)
	}
}

func TestBulkImportCreatesMissingProducts(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	productID := uuid.New()
	batch := []ImportOrder{
		{
			ID:        uuid.New(),
			Number:    41,
			Status:    domain.StatusFinished,
			CreatedAt: time.Now().Add(-time.Hour),
			Items: []CreateOrderItem{
				{ProductID: productID, Name: "Imported Cake", Price: decimal.NewFromFloat(5.50), Quantity: 2},
			},
		},
	}

	imported, err := repo.BulkImport(ctx, batch)
	if err != nil {
		t.Fatalf("failed to import orders: %v", err)
	}
	if len(imported) != 1 {
		t.Fatalf("expected 1 imported order, got %d", len(imported))
	}

	var category string
	err = testDB.QueryRow(`SELECT category FROM products WHERE id = $1`, productID).Scan(&category)
	if err != nil {
		t.Fatalf("expected product row to be created: %v", err)
	}
	if category != "imported" {
		t.Errorf("expected category 'imported', got %q", category)
	}
}

func TestBulkImportAliasesProductsByName(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()
	existing := seedProduct(t, "Croissant", "3.00")

	foreignID := uuid.New()
	batch := []ImportOrder{
		{
			ID:        uuid.New(),
			Number:    7,
			Status:    domain.StatusPreparing,
			CreatedAt: time.Now(),
			Items: []CreateOrderItem{
				{ProductID: foreignID, Name: "Croissant", Price: decimal.NewFromFloat(3.00), Quantity: 1},
			},
		},
	}

	imported, err := repo.BulkImport(ctx, batch)
	if err != nil {
		t.Fatalf("failed to import orders: %v", err)
	}

	if got := imported[0].Items[0].ProductID; got != existing.ID {
		t.Errorf("expected item to be remapped to existing product %s, got %s", existing.ID, got)
	}

	var count int
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		t.Fatalf("failed to count products: %v", err)
	}
	if count != 1 {
		t.Errorf("expected no new product rows, got %d products", count)
	}
}

func TestBulkImportReplacesExistingOrders(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)
	ctx := context.Background()

	productID := uuid.New()
	orderID := uuid.New()
	batch := []ImportOrder{
		{
			ID:        orderID,
			Number:    12,
			Status:    domain.StatusPreparing,
			CreatedAt: time.Now().Add(-2 * time.Hour),
			Items: []CreateOrderItem{
				{ProductID: productID, Name: "Bagel", Price: decimal.NewFromFloat(2.20), Quantity: 1},
			},
		},
	}

	if _, err := repo.BulkImport(ctx, batch); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	// Re-import the same order with a different status and quantity.
	batch[0].Status = domain.StatusFinished
	batch[0].Items[0].Quantity = 3

	imported, err := repo.BulkImport(ctx, batch)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if imported[0].Status != domain.StatusFinished {
		t.Errorf("expected replaced order to be finished, got %s", imported[0].Status)
	}

	var orderCount, itemCount int
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&orderCount); err != nil {
		t.Fatal(err)
	}
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, orderID).Scan(&itemCount); err != nil {
		t.Fatal(err)
	}
	if orderCount != 1 {
		t.Errorf("expected 1 order after re-import, got %d", orderCount)
	}
	if itemCount != 1 {
		t.Errorf("expected items to be replaced not appended, got %d rows", itemCount)
	}
}

func TestBulkImportRejectsEmptyBatch(t *testing.T) {
	resetTables(t)
	repo := NewOrderRepository(testDB)

	if _, err := repo.BulkImport(context.Background(), nil); !errors.Is(err, ErrEmptyImport) {
		t.Fatalf("expected ErrEmptyImport, got %v", err)
	}
}
