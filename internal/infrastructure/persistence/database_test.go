package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/propledger/backend/internal/infrastructure/config"
	"github.com/propledger/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDatabase opens an in-memory sqlite database with the schema applied.
// A single connection keeps every query on the same in-memory database.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), &config.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1}, Options{})
	require.NoError(t, err)
	require.NoError(t, db.DB.AutoMigrate(models.AllModels()...))
	require.NoError(t, db.DB.Exec(
		`CREATE UNIQUE INDEX uq_period_ledgers_unit_bill_period ON period_ledgers (month, year) WHERE kind = 'unit_bill'`,
	).Error)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_SQLite(t *testing.T) {
	db := newTestDatabase(t)

	t.Run("ping succeeds", func(t *testing.T) {
		assert.NoError(t, db.Ping(context.Background()))
	})

	t.Run("stats reflect pool limits", func(t *testing.T) {
		stats, err := db.Stats()
		require.NoError(t, err)
		assert.Equal(t, 1, stats.MaxOpenConnections)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Exec(`INSERT INTO units (id, unit_number, status, service_charge, previous_water_reading, current_water_reading, previous_electricity_reading, current_electricity_reading, created_at, updated_at)
				VALUES ('7d3c7b52-2d6e-4c4a-9a55-3f1b2a0c0001', 'A-1', 'Vacant', 0, 0, 0, 0, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`).Error)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var count int64
		require.NoError(t, db.DB.Model(&models.UnitModel{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestOpen_PingFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	dialector := postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"})
	_, err = Open(dialector, nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestDatabase_Close(t *testing.T) {
	db, err := Open(sqlite.Open(":memory:"), nil, Options{})
	require.NoError(t, err)

	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}
