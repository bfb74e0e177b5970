// Package dbtest opens throwaway sqlite databases carrying the production schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/fssa-batch3/homebakery-backend/pkg/db"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// schema mirrors pkg/migrate/migrations in sqlite syntax, including the
// partial unique index on open price tiers.
var schema = []string{
	`CREATE TABLE products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category_id INTEGER NOT NULL,
  is_veg BOOLEAN NOT NULL DEFAULT 1,
  is_active BOOLEAN NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE product_prices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  product_id INTEGER NOT NULL REFERENCES products (id),
  quantity NUMERIC NOT NULL CHECK (quantity > 0),
  type TEXT NOT NULL CHECK (type IN ('KG', 'NOS')),
  price NUMERIC NOT NULL CHECK (price > 0),
  start_date DATETIME NOT NULL,
  end_date DATETIME NULL,
  CHECK (end_date IS NULL OR start_date < end_date)
);`,
	`CREATE UNIQUE INDEX ux_product_prices_current_tier
  ON product_prices (product_id, quantity)
  WHERE end_date IS NULL;`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  product_id INTEGER NOT NULL REFERENCES products (id),
  price_id INTEGER NOT NULL REFERENCES product_prices (id),
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  address TEXT NOT NULL,
  delivery_date DATETIME NOT NULL,
  status TEXT NOT NULL DEFAULT 'NOT_DELIVERED',
  created_at DATETIME
);`,
}

// Open returns a private in-memory database with the schema applied. The
// pool is pinned to one connection so the database lives for the whole test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:hb_%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a *db.Client for services that need transactions.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t))
}
