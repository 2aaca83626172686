// Package testutil holds fixtures shared by repository and service tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"anoa.com/yamdb/internal/authz"
	"anoa.com/yamdb/internal/bootstrap"
	"anoa.com/yamdb/internal/entity"
)

// NewDB opens a migrated SQLite database in a temp dir with foreign keys on.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, bootstrap.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, username string, role authz.Role) *entity.User {
	t.Helper()

	email := username + "@example.com"
	user := &entity.User{Username: username, Email: &email, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTitle inserts a title with no reviews.
func CreateTitle(t *testing.T, db *gorm.DB, name string, year int) *entity.Title {
	t.Helper()

	title := &entity.Title{Name: name, Year: year}
	require.NoError(t, db.Create(title).Error)
	return title
}
