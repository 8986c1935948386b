package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/imagerank/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative
// schema from db.GetSchemaSQL(), the single source of truth repository
// tests must use instead of hardcoding CREATE TABLE statements.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	if _, err := testDB.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if _, err := testDB.Exec("INSERT OR IGNORE INTO app_state (id, current_round) VALUES (1, 0)"); err != nil {
		t.Fatalf("failed to seed app_state: %v", err)
	}

	t.Cleanup(func() { testDB.Close() })

	return testDB
}
