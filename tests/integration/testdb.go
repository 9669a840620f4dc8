// Package integration exercises the sync engine end to end against a real
// database. Tests run on an in-memory SQLite instance so the full
// repository, mapping, and orchestrator stack is covered without external
// services.
package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dentalab/erpsync/internal/domain/billing"
	"github.com/dentalab/erpsync/internal/domain/catalog"
	"github.com/dentalab/erpsync/internal/domain/clinic"
	"github.com/dentalab/erpsync/internal/domain/staff"
	"github.com/dentalab/erpsync/internal/infrastructure/persistence/models"
)

// newTestDB opens a fresh in-memory database and migrates the full schema.
// The connection pool is pinned to one connection; each SQLite in-memory
// connection is its own database otherwise.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "failed to open in-memory database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&clinic.Clinic{},
		&catalog.Service{},
		&staff.Member{},
		&billing.Invoice{},
		&models.IdentityMappingModel{},
		&models.SyncRunModel{},
	)
	require.NoError(t, err, "failed to migrate schema")

	return db
}
