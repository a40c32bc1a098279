// Package testutil holds helpers shared by package tests. Nothing outside _test.go files
// imports it.
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"invoicing-backend/models"
)

// OpenDB returns a migrated in-memory sqlite database private to the test.
// The pool is capped at one connection, so code under test must not use the shared pool
// while it holds a transaction.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// CreateUser inserts an entitled user with the given email and password "secret123".
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	trial := time.Now().Add(14 * 24 * time.Hour)
	u := &models.User{
		FirstName:          "Test",
		LastName:           "User",
		Email:              email,
		TrialEndsAt:        &trial,
		SubscriptionStatus: models.SubscriptionTrialing,
	}
	require.NoError(t, u.SetPassword("secret123"))
	require.NoError(t, db.Create(u).Error)
	return u
}
