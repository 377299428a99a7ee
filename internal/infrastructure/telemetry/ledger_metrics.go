package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LedgerMetrics holds the billing ledger instruments.
type LedgerMetrics struct {
	created          *Counter
	patches          *Counter
	warnings         *Counter
	snapshotFailures *Counter
	deleted          *Counter
	duration         *Histogram
}

// NewLedgerMetrics creates the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	m := &LedgerMetrics{}
	var err error
	if m.created, err = NewCounter(meter, "ledgers_created_total", "Period ledgers created", "{ledger}"); err != nil {
		return nil, err
	}
	if m.patches, err = NewCounter(meter, "ledger_patches_total", "Ledger patch requests by outcome", "{patch}"); err != nil {
		return nil, err
	}
	if m.warnings, err = NewCounter(meter, "ledger_patch_warnings_total", "Reconciliation warnings by code", "{warning}"); err != nil {
		return nil, err
	}
	if m.snapshotFailures, err = NewCounter(meter, "ledger_snapshot_failures_total", "Source snapshot queries that failed", "{failure}"); err != nil {
		return nil, err
	}
	if m.deleted, err = NewCounter(meter, "ledgers_deleted_total", "Period ledgers deleted", "{ledger}"); err != nil {
		return nil, err
	}
	if m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_operation_duration_seconds",
		Description: "Ledger service operation latency",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// The Record methods are nil-safe so services can run without metrics.

// RecordCreated counts a created ledger.
func (m *LedgerMetrics) RecordCreated(ctx context.Context, kind string) {
	if m != nil {
		m.created.Inc(ctx, AttrLedgerKind.String(kind))
	}
}

// RecordPatch counts a patch; outcome is applied, noop or rejected.
func (m *LedgerMetrics) RecordPatch(ctx context.Context, kind, outcome string) {
	if m != nil {
		m.patches.Inc(ctx, AttrLedgerKind.String(kind), AttrOutcome.String(outcome))
	}
}

// RecordWarning counts a reconciliation warning.
func (m *LedgerMetrics) RecordWarning(ctx context.Context, kind, code string) {
	if m != nil {
		m.warnings.Inc(ctx, AttrLedgerKind.String(kind), AttrWarningCode.String(code))
	}
}

// RecordSnapshotFailure counts a degraded snapshot.
func (m *LedgerMetrics) RecordSnapshotFailure(ctx context.Context, kind string) {
	if m != nil {
		m.snapshotFailures.Inc(ctx, AttrLedgerKind.String(kind))
	}
}

// RecordDeleted counts a deleted ledger.
func (m *LedgerMetrics) RecordDeleted(ctx context.Context, kind string) {
	if m != nil {
		m.deleted.Inc(ctx, AttrLedgerKind.String(kind))
	}
}

// ObserveDuration records the latency of an operation started at start.
func (m *LedgerMetrics) ObserveDuration(ctx context.Context, kind, operation string, start time.Time) {
	if m != nil {
		m.duration.RecordDuration(ctx, time.Since(start),
			attribute.String(string(AttrLedgerKind), kind),
			AttrOperation.String(operation))
	}
}
