package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationFilesExist(t *testing.T) {
	migrationsDir := "../../migrations"

	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		t.Fatal("Migrations directory does not exist")
	}

	expectedMigrations := []string{
		"00001_create_products_table.sql",
		"00002_create_orders_table.sql",
		"00003_create_order_items_table.sql",
	}

	for _, migration := range expectedMigrations {
		path := filepath.Join(migrationsDir, migration)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("Migration file %s does not exist", migration)
		}
	}
}

func TestMigrationFilesHaveUpAndDown(t *testing.T) {
	migrationsDir := "../../migrations"

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("Failed to read migrations directory: %v", err)
	}

	sqlFileCount := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		sqlFileCount++
		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			t.Errorf("Failed to read migration file %s: %v", file.Name(), err)
			continue
		}

		text := string(content)
		if !strings.Contains(text, "+goose Up") {
			t.Errorf("Migration %s is missing a goose Up section", file.Name())
		}
		if !strings.Contains(text, "+goose Down") {
			t.Errorf("Migration %s is missing a goose Down section", file.Name())
		}
	}

	if sqlFileCount == 0 {
		t.Error("No migration files found")
	}
}

func TestOrderStatusConstraintCoversLifecycle(t *testing.T) {
	content, err := os.ReadFile("../../migrations/00002_create_orders_table.sql")
	if err != nil {
		t.Fatalf("Failed to read orders migration: %v", err)
	}

	text := string(content)
	for _, status := range []string{"'pending'", "'preparing'", "'finished'", "'completed'"} {
		if !strings.Contains(text, status) {
			t.Errorf("Orders status constraint is missing %s", status)
		}
	}
	if !strings.Contains(text, "number INTEGER NOT NULL UNIQUE") {
		t.Error("Orders table must enforce unique ticket numbers")
	}
}
