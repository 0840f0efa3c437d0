package schedule

import (
	"database/sql"
	"testing"
	"time"

	tempotest "github.com/teranos/tempo/internal/testing"
)

// createTestDB creates an in-memory migrated test database.
func createTestDB(t *testing.T) *sql.DB {
	return tempotest.CreateTestDB(t)
}

// toronto is the engine timezone used across tests.
func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load America/Toronto: %v", err)
	}
	return loc
}
