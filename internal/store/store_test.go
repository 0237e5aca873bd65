package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/markwise/markwise-server/internal/store"
)

func newTestDB(t *testing.T) (store.Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A shared in-memory sqlite database lives and dies with one
	// connection.
	sqlDB.SetMaxOpenConns(1)

	s := store.NewStore(db)
	require.NoError(t, s.InitialMigration())
	t.Cleanup(func() { _ = s.Close() })

	return s, db
}

func newTestStore(t *testing.T) store.Store {
	s, _ := newTestDB(t)
	return s
}
