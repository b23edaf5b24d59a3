package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/fleetdesk/leaveguard/internal/db"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a migrated in-memory store, closed with the test.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return open(t, ":memory:")
}

// NewFileTestDB opens a migrated WAL store in a temp dir, for tests that
// need more than one connection.
func NewFileTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return open(t, filepath.Join(t.TempDir(), "leaveguard.db"))
}

func open(t *testing.T, path string) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(path)
	require.NoError(t, err, "opening test database")
	t.Cleanup(func() { database.Close() })
	return database
}

func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(database)
}
