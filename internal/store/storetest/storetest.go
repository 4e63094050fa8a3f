// Package storetest opens initialized in-memory databases for tests
package storetest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/halopress/halopress/internal/store"
)

// New returns an initialized in-memory sqlite database closed when the test ends
func New(t testing.TB) *store.DB {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db := store.New(sqlDB, store.SQLite, "")
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	return db
}
