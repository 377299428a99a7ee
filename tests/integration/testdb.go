// Package integration runs the ledger stack against a PostgreSQL container
// started with testcontainers.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/propledger/backend/internal/infrastructure/config"
	"github.com/propledger/backend/internal/infrastructure/migration"
	"github.com/propledger/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestDB is a connection to the package's migrated PostgreSQL container
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
}

// pg is the container shared by every test in the package
var pg struct {
	mu        sync.Mutex
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
}

// NewSharedTestDB connects to the package container, starting and migrating
// it on first use. Tests clean up their own rows, usually with CleanTables.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()

	pg.mu.Lock()
	if pg.container == nil {
		startPostgres(t)
	}
	cfg := pg.cfg
	pg.mu.Unlock()

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := persistence.NewDatabase(&cfg, persistence.Options{Logger: zaptest.NewLogger(t), LogLevel: level})
	require.NoError(t, err, "connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	return &TestDB{DB: db.DB, t: t}
}

func startPostgres(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("propledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:           host,
		Port:           port.Int(),
		User:           "postgres",
		Password:       "postgres",
		DBName:         "propledger_test",
		SSLMode:        "disable",
		MaxOpenConns:   5,
		MaxIdleConns:   2,
		MigrationsPath: migrationsDir(t),
	}

	db, err := persistence.NewDatabase(&cfg, persistence.Options{Logger: zap.NewNop(), LogLevel: gormlogger.Silent})
	require.NoError(t, err, "connect for migrations")
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, cfg.MigrationsPath, zap.NewNop())
	require.NoError(t, err, "open migrator")
	require.NoError(t, m.Up(), "apply migrations")
	_ = m.Close()

	pg.container = container
	pg.cfg = cfg
}

// CleanTables empties every application table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error)

	for _, table := range tables {
		require.NoError(tdb.t, tdb.DB.Exec(`TRUNCATE TABLE "`+table+`" CASCADE`).Error, table)
	}
}

// migrationsDir walks up from this file to the module's migrations dir
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)

	for dir := filepath.Dir(file); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
	}
	t.Fatal("migrations directory not found")
	return ""
}

// CleanupSharedContainer terminates the package container. TestMain calls it.
func CleanupSharedContainer() {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if pg.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = pg.container.Terminate(ctx)
	pg.container = nil
}
