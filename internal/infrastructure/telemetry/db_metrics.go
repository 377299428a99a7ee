package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterDBPoolMetrics exposes database/sql pool statistics as observable
// gauges read at collection time.
func RegisterDBPoolMetrics(meter metric.Meter, db *sql.DB) error {
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Database pool connections by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create pool gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return fmt.Errorf("failed to create pool wait counter: %w", err)
	}

	state := attribute.Key("db.pool.state")
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := db.Stats()
		o.ObserveInt64(conns, int64(s.OpenConnections), metric.WithAttributes(state.String("open")))
		o.ObserveInt64(conns, int64(s.InUse), metric.WithAttributes(state.String("in_use")))
		o.ObserveInt64(conns, int64(s.Idle), metric.WithAttributes(state.String("idle")))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, conns, waits)
	return err
}
