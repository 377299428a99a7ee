package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type tracedRow struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func TestDBTracingPlugin(t *testing.T) {
	rec := installRecorder(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
	require.NoError(t, plugin.RegisterOtelGorm(db))

	ctx, span := StartServiceSpan(context.Background(), "test", "db")
	require.NoError(t, db.WithContext(ctx).Create(&tracedRow{ID: 1, Name: "a"}).Error)
	var got tracedRow
	require.NoError(t, db.WithContext(ctx).First(&got, 1).Error)
	span.End()

	var dbSpans int
	for _, s := range rec.Ended() {
		for _, kv := range s.Attributes() {
			if kv.Key == "db.rows_affected" {
				dbSpans++
			}
		}
	}
	assert.GreaterOrEqual(t, dbSpans, 2)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	plugin := NewDBTracingPlugin(DBTracingConfig{}, zap.NewNop())
	assert.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Equal(t, "postgresql", plugin.config.DBSystem)
}
