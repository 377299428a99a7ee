package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include bound variables; development only
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DBTracingPlugin installs otelgorm plus slow query annotation callbacks.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a DBTracingPlugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	if cfg.SlowQueryThresh == 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type queryStartKey struct{}

// RegisterOtelGorm registers otelgorm and the timing callbacks on db.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	return p.registerTiming(db)
}

func (p *DBTracingPlugin) registerTiming(db *gorm.DB) error {
	cb := db.Callback()
	for _, reg := range []struct {
		name   string
		before func() error
		after  func() error
	}{
		{"create",
			func() error { return cb.Create().Before("gorm:create").Register("timing:before_create", markStart) },
			func() error { return cb.Create().After("gorm:create").Register("timing:after_create", p.annotate) }},
		{"query",
			func() error { return cb.Query().Before("gorm:query").Register("timing:before_query", markStart) },
			func() error { return cb.Query().After("gorm:query").Register("timing:after_query", p.annotate) }},
		{"update",
			func() error { return cb.Update().Before("gorm:update").Register("timing:before_update", markStart) },
			func() error { return cb.Update().After("gorm:update").Register("timing:after_update", p.annotate) }},
		{"delete",
			func() error { return cb.Delete().Before("gorm:delete").Register("timing:before_delete", markStart) },
			func() error { return cb.Delete().After("gorm:delete").Register("timing:after_delete", p.annotate) }},
		{"row",
			func() error { return cb.Row().Before("gorm:row").Register("timing:before_row", markStart) },
			func() error { return cb.Row().After("gorm:row").Register("timing:after_row", p.annotate) }},
		{"raw",
			func() error { return cb.Raw().Before("gorm:raw").Register("timing:before_raw", markStart) },
			func() error { return cb.Raw().After("gorm:raw").Register("timing:after_raw", p.annotate) }},
	} {
		if err := reg.before(); err != nil {
			return err
		}
		if err := reg.after(); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

// annotate adds row counts, table and slow query markers to the active span.
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
