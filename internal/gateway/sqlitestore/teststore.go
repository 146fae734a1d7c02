package sqlitestore

import (
	"testing"
)

// NewTestStore creates a gateway backed by a fresh in-memory SQLite database
// with the schema applied.
func NewTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return New(db)
}
