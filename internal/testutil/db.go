package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/studymate/internal/config"
	"github.com/xxxsen/studymate/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_DSN and applies the
// migrations. The test is skipped when the variable is unset.
func OpenTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
