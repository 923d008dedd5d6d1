// Package datatest opens throwaway databases for tests outside the data package.
package datatest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/playhub/lobby/internal/core/data"
)

// NewDatabase returns a migrated sqlite database in the test's temp directory.
func NewDatabase(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("error initializing test database: %s", err)
	}
	if err := data.Migrate(db); err != nil {
		t.Fatalf("error auto migrating db: %s", err)
	}
	t.Cleanup(func() { _ = data.Close(db) })
	return db
}

// CreateAccounts adds a player account (password "password") for each username.
func CreateAccounts(t testing.TB, db *gorm.DB, usernames ...string) {
	t.Helper()

	for _, username := range usernames {
		account := &data.Account{Username: username, Password: "password", Role: data.RolePlayer}
		if err := data.CreateAccount(db, account); err != nil {
			t.Fatalf("error creating account %s: %s", username, err)
		}
	}
}
