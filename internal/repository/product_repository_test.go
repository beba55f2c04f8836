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

func TestProductCreateAndFindByID(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	amount := "250ml"
	now := time.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      "Orange Juice",
		Price:     decimal.NewFromFloat(3.40),
		Category:  "drinks",
		Amount:    &amount,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := repo.Create(ctx, product); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}

	fetched, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to find product: %v", err)
	}
	if fetched.Name != product.Name {
		t.Errorf("expected name %q, got %q", product.Name, fetched.Name)
	}
	if !fetched.Price.Equal(product.Price) {
		t.Errorf("expected price %s, got %s", product.Price, fetched.Price)
	}
	if fetched.Amount == nil || *fetched.Amount != amount {
		t.Errorf("expected amount %q, got %v", amount, fetched.Amount)
	}

	if _, err := repo.FindByID(ctx, uuid.New()); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductUpdateUnknownID(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)

	product := &domain.Product{
		ID:        uuid.New(),
		Name:      "Ghost",
		Price:     decimal.NewFromInt(1),
		Category:  "none",
		UpdatedAt: time.Now(),
	}

	if err := repo.Update(context.Background(), product); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductDeleteBlockedByOrderHistory(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	orderRepo := NewOrderRepository(testDB)
	ctx := context.Background()

	product := seedProduct(t, "Brownie", "2.80")
	if _, err := orderRepo.Create(ctx, []CreateOrderItem{orderItem(product, 1)}); err != nil {
		t.Fatalf("failed to create referencing order: %v", err)
	}

	if err := productRepo.Delete(ctx, product.ID); !errors.Is(err, ErrProductHasOrders) {
		t.Fatalf("expected ErrProductHasOrders, got %v", err)
	}

	// The product must still be present.
	if _, err := productRepo.FindByID(ctx, product.ID); err != nil {
		t.Fatalf("product should survive a blocked delete: %v", err)
	}
}

func TestProductDeleteWithoutReferences(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	product := seedProduct(t, "Scone", "2.10")
	if err := repo.Delete(ctx, product.ID); err != nil {
		t.Fatalf("failed to delete unreferenced product: %v", err)
	}

	if _, err := repo.FindByID(ctx, product.ID); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product to be gone, got %v", err)
	}

	if err := repo.Delete(ctx, uuid.New()); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for unknown ID, got %v", err)
	}
}

func TestFindAvailableExcludesHidden(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	visible := seedProduct(t, "Muffin", "2.60")
	hidden := seedProduct(t, "Seasonal Special", "6.00")
	if _, err := testDB.Exec(`UPDATE products SET hidden = TRUE WHERE id = $1`, hidden.ID); err != nil {
		t.Fatalf("failed to hide product: %v", err)
	}

	available, err := repo.FindAvailable(ctx)
	if err != nil {
		t.Fatalf("failed to list available products: %v", err)
	}
	if len(available) != 1 || available[0].ID != visible.ID {
		t.Errorf("expected only the visible product, got %d products", len(available))
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("failed to list all products: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 products in full listing, got %d", len(all))
	}
}

func TestFindByCategory(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	seedProduct(t, "Cold Brew", "4.00")
	pastry := &domain.Product{
		ID:        uuid.New(),
		Name:      "Danish",
		Price:     decimal.NewFromFloat(2.90),
		Category:  "pastries",
		Available: true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := repo.Create(ctx, pastry); err != nil {
		t.Fatalf("failed to create pastry: %v", err)
	}

	pastries, err := repo.FindByCategory(ctx, "pastries")
	if err != nil {
		t.Fatalf("failed to list by category: %v", err)
	}
	if len(pastries) != 1 || pastries[0].ID != pastry.ID {
		t.Errorf("expected only the pastry, got %d products", len(pastries))
	}

	empty, err := repo.FindByCategory(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("failed to list empty category: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty slice for unknown category, got %d", len(empty))
	}
}
