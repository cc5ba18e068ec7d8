package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/config"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/db"
)

const TestDimension = 128

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "recsys",
		Password: "recsys_pass",
		DBName:   "recsys_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn, TestDimension); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// Reset empties every table, embeddings first.
func Reset(t *testing.T, conn *sql.DB) {
	t.Helper()
	const query = `TRUNCATE product_embeddings, customer_embeddings, purchases, products, customers, model_versions RESTART IDENTITY CASCADE`
	if _, err := conn.Exec(query); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
}
