package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/database"
	"github.com/narwhalmedia/simulcast/pkg/logger"
)

// NewTestDB opens a migrated in-memory SQLite database that is closed when the test ends.
// The pool holds a single connection, so every statement sees the same database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, logger.NewNoop())
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(db); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	})

	if err := database.RunMigrations(db, logger.NewNoop()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// TruncateTables deletes every row of the given tables to clean data between tests
func TruncateTables(t testing.TB, db *gorm.DB, tableNames ...string) {
	t.Helper()
	for _, table := range tableNames {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("Failed to truncate %s: %v", table, err)
		}
	}
}
