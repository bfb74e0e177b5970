package migrate

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fssa-batch3/homebakery-backend/pkg/config"
	"github.com/fssa-batch3/homebakery-backend/pkg/logger"
)

func TestValidateDirAcceptsRepoMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("repo migrations failed validation: %v", err)
	}
}

func TestProductPricesMigrationEnforcesCurrentTier(t *testing.T) {
	content := readMigration(t, "*_create_product_prices_table.sql")

	checks := []string{
		"CREATE TYPE quantity_unit AS ENUM ('KG', 'NOS')",
		"CREATE TABLE IF NOT EXISTS product_prices",
		"product_id BIGINT NOT NULL REFERENCES products (id)",
		"CHECK (price > 0)",
		"CHECK (quantity > 0)",
		"CHECK (end_date IS NULL OR start_date < end_date)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_product_prices_current_tier",
		"WHERE end_date IS NULL",
		"DROP TABLE IF EXISTS product_prices",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationReferencesPriceRecord(t *testing.T) {
	content := readMigration(t, "*_create_orders_table.sql")

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"price_id BIGINT NOT NULL REFERENCES product_prices (id)",
		"CHECK (quantity > 0)",
		"DROP TABLE IF EXISTS orders",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Price Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_price_notes.sql") {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}

	if _, err := CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected error for name that sanitizes to empty")
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected filename validation error")
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20240101000000_no_down.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected missing down section error")
	}
}

func TestMaybeRunDevSkipsOutsideDevAndForSQLite(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	prod := &config.Config{App: config.AppConfig{Env: "prod"}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	if err := MaybeRunDev(context.Background(), prod, logg, nil); err != nil {
		t.Fatalf("prod should be a no-op, got %v", err)
	}

	lite := &config.Config{
		App:          config.AppConfig{Env: "dev"},
		DB:           config.DBConfig{Driver: config.DriverSQLite},
		FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true},
	}
	if err := MaybeRunDev(context.Background(), lite, logg, nil); err != nil {
		t.Fatalf("sqlite should be skipped, got %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
