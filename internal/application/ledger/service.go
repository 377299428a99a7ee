// Package ledger is the application layer for the billing ledgers. One
// Service instance serves one ledger kind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/infrastructure/logger"
	"github.com/propledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Patch outcomes reported to metrics
const (
	outcomeApplied  = "applied"
	outcomeNoop     = "noop"
	outcomeRejected = "rejected"
)

// Options carry deployment policy
type Options struct {
	LockOnApproval  bool
	DefaultPageSize int
	MaxPageSize     int
}

// Dependencies are the collaborators of a Service
type Dependencies struct {
	Repo    ledger.Repository
	Source  ledger.SourceQuery
	Events  shared.EventPublisher
	Metrics *telemetry.LedgerMetrics
	Logger  *zap.Logger
}

// Service implements create, patch, read and delete for one ledger kind
type Service struct {
	config    ledger.KindConfig
	repo      ledger.Repository
	snapshots *ledger.SnapshotBuilder
	events    shared.EventPublisher
	metrics   *telemetry.LedgerMetrics
	opts      Options
	logger    *zap.Logger
	span      string
}

// NewService creates a Service for the kind described by cfg
func NewService(cfg ledger.KindConfig, deps Dependencies, opts Options) *Service {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		config:    cfg,
		repo:      deps.Repo,
		snapshots: ledger.NewSnapshotBuilder(cfg, deps.Source),
		events:    deps.Events,
		metrics:   deps.Metrics,
		opts:      opts,
		logger:    log.With(zap.String("ledger_kind", cfg.Kind.String())),
		span:      cfg.Kind.String() + "_ledger",
	}
}

// Kind returns the ledger kind served
func (s *Service) Kind() ledger.Kind {
	return s.config.Kind
}

// Config returns the kind configuration
func (s *Service) Config() ledger.KindConfig {
	return s.config
}

// Create snapshots the sources for a period into a new ledger. An empty
// source set yields an empty ledger, as does a failing source.
func (s *Service) Create(ctx context.Context, input CreateLedgerInput) (*LedgerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.span, "create", telemetry.SpanAttrLedgerKind, s.config.Kind.String())
	defer span.End()
	defer s.metrics.ObserveDuration(ctx, s.config.Kind.String(), "create", time.Now())

	key, err := input.Key(s.config)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrPeriod, key.String())

	var (
		resp   *LedgerResponse
		opErr  error
		labels = map[string]string{"ledger_kind": s.config.Kind.String(), "operation": "create"}
	)
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		resp, opErr = s.create(c, key, input.IsApproved)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		return nil, opErr
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrLedgerID, resp.ID.String(),
		telemetry.SpanAttrSnapshotSize, len(resp.LineItems),
	)
	telemetry.SetOK(span)
	return resp, nil
}

func (s *Service) create(ctx context.Context, key ledger.PeriodKey, approved bool) (*LedgerResponse, error) {
	log := logger.Enrich(ctx, s.logger)

	if s.config.UniquePeriod {
		exists, err := s.repo.ExistsForPeriod(ctx, s.config.Kind, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing ledger: %w", err)
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("a %s ledger already exists for %s", s.config.Kind, key))
		}
	}

	snapshot := s.snapshots.Build(ctx, key)
	var warnings []ledger.Warning
	if snapshot.Degraded() {
		log.Warn("source query failed; ledger created without line items",
			zap.String("period", key.String()),
			zap.Error(snapshot.Err),
		)
		s.metrics.RecordSnapshotFailure(ctx, s.config.Kind.String())
		warnings = append(warnings, ledger.Warning{
			Code:    ledger.WarningSnapshotDegraded,
			Message: "source records could not be read; the ledger starts empty",
		})
	}

	l, err := ledger.NewPeriodLedger(s.config, key, snapshot, approved)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, l); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save ledger: %w", err)
	}
	s.publish(ctx, l)
	s.metrics.RecordCreated(ctx, s.config.Kind.String())

	log.Info("ledger created",
		zap.String("ledger_id", l.ID.String()),
		zap.String("period", key.String()),
		zap.Int("line_items", len(l.LineItems)),
		zap.String("total", l.Total.StringFixed(2)),
	)

	resp := ToLedgerResponse(s.config, l, warnings)
	return &resp, nil
}

// ApplyPatch merges a partial update into a ledger. Unknown line item ids and
// malformed numbers are reported as warnings, not errors.
func (s *Service) ApplyPatch(ctx context.Context, id uuid.UUID, input PatchLedgerInput) (*LedgerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.span, "apply_patch",
		telemetry.SpanAttrLedgerKind, s.config.Kind.String(),
		telemetry.SpanAttrLedgerID, id.String(),
	)
	defer span.End()
	defer s.metrics.ObserveDuration(ctx, s.config.Kind.String(), "patch", time.Now())

	var (
		resp   *LedgerResponse
		opErr  error
		labels = map[string]string{"ledger_kind": s.config.Kind.String(), "operation": "patch"}
	)
	telemetry.WithProfilingLabels(ctx, labels, func(c context.Context) {
		resp, opErr = s.applyPatch(c, id, input)
	})
	if opErr != nil {
		telemetry.RecordError(span, opErr)
		s.metrics.RecordPatch(ctx, s.config.Kind.String(), outcomeRejected)
		return nil, opErr
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrVersion, resp.Version,
		telemetry.SpanAttrWarnings, len(resp.Warnings),
	)
	telemetry.SetOK(span)
	return resp, nil
}

func (s *Service) applyPatch(ctx context.Context, id uuid.UUID, input PatchLedgerInput) (*LedgerResponse, error) {
	log := logger.Enrich(ctx, s.logger).With(zap.String("ledger_id", id.String()))

	l, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	period, err := input.PeriodInput.Patch()
	if err != nil {
		return nil, err
	}
	patch := ledger.Patch{
		Period:          period,
		Approved:        input.IsApproved,
		LineItems:       input.Items(),
		ExpectedVersion: input.Version,
	}

	before := l.Period
	outcome, err := l.ApplyPatch(s.config, patch, ledger.PatchOptions{LockOnApproval: s.opts.LockOnApproval})
	if err != nil {
		return nil, err
	}

	for _, w := range outcome.Warnings {
		log.Warn("line item patch warning",
			zap.String("code", string(w.Code)),
			zap.String("line_item_id", w.LineItemID),
			zap.String("field", w.Field),
			zap.String("detail", w.Message),
		)
		s.metrics.RecordWarning(ctx, s.config.Kind.String(), string(w.Code))
	}

	if !outcome.Changed {
		s.metrics.RecordPatch(ctx, s.config.Kind.String(), outcomeNoop)
		resp := ToLedgerResponse(s.config, l, outcome.Warnings)
		return &resp, nil
	}

	if s.config.UniquePeriod && l.Period != before {
		exists, err := s.repo.ExistsForPeriod(ctx, s.config.Kind, l.Period)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing ledger: %w", err)
		}
		if exists {
			return nil, shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("a %s ledger already exists for %s", s.config.Kind, l.Period))
		}
	}

	if err := s.repo.SaveWithLock(ctx, l); err != nil {
		if errors.Is(err, shared.ErrConcurrencyConflict) || errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save ledger: %w", err)
	}
	s.publish(ctx, l)
	s.metrics.RecordPatch(ctx, s.config.Kind.String(), outcomeApplied)

	log.Info("ledger updated",
		zap.Int("version", l.Version),
		zap.Int("changed_line_items", len(outcome.Reconcile.Changed)),
		zap.Int("warnings", len(outcome.Warnings)),
		zap.String("total", l.Total.StringFixed(2)),
	)

	resp := ToLedgerResponse(s.config, l, outcome.Warnings)
	return &resp, nil
}

// GetByID returns a ledger of this kind
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*LedgerResponse, error) {
	l, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToLedgerResponse(s.config, l, nil)
	return &resp, nil
}

// Find returns the domain ledger, for callers that render it themselves
func (s *Service) Find(ctx context.Context, id uuid.UUID) (*ledger.PeriodLedger, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.span, "get",
		telemetry.SpanAttrLedgerKind, s.config.Kind.String(),
		telemetry.SpanAttrLedgerID, id.String(),
	)
	defer span.End()

	l, err := s.find(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return l, nil
}

// List returns one page of ledgers, newest period first
func (s *Service) List(ctx context.Context, filter ListLedgerFilter) (*shared.Paginated[LedgerResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, s.span, "list", telemetry.SpanAttrLedgerKind, s.config.Kind.String())
	defer span.End()

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = s.opts.DefaultPageSize
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}

	query := ledger.Filter{
		Kind:     s.config.Kind,
		Year:     filter.Year,
		Month:    filter.Month,
		Page:     page,
		PageSize: pageSize,
	}
	if s.config.RequiresFloor {
		query.Floor = filter.Floor
	}

	total, err := s.repo.Count(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to count ledgers: %w", err)
	}
	rows, err := s.repo.FindAll(ctx, query)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list ledgers: %w", err)
	}

	items := make([]LedgerResponse, len(rows))
	for i := range rows {
		items[i] = ToLedgerResponse(s.config, &rows[i], nil)
	}
	result := shared.NewPaginated(items, total, page, pageSize)
	telemetry.SetOK(span)
	return &result, nil
}

// Delete removes a ledger. Source records are not touched.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, s.span, "delete",
		telemetry.SpanAttrLedgerKind, s.config.Kind.String(),
		telemetry.SpanAttrLedgerID, id.String(),
	)
	defer span.End()
	defer s.metrics.ObserveDuration(ctx, s.config.Kind.String(), "delete", time.Now())

	l, err := s.find(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if err := s.repo.Delete(ctx, s.config.Kind, id); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrNotFound) {
			return s.notFound(id)
		}
		return fmt.Errorf("failed to delete ledger: %w", err)
	}

	l.MarkDeleted()
	s.publish(ctx, l)
	s.metrics.RecordDeleted(ctx, s.config.Kind.String())

	logger.Enrich(ctx, s.logger).Info("ledger deleted",
		zap.String("ledger_id", id.String()),
		zap.String("period", l.Period.String()),
	)
	telemetry.SetOK(span)
	return nil
}

func (s *Service) find(ctx context.Context, id uuid.UUID) (*ledger.PeriodLedger, error) {
	l, err := s.repo.FindByID(ctx, s.config.Kind, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, s.notFound(id)
		}
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return l, nil
}

func (s *Service) notFound(id uuid.UUID) error {
	return shared.NewNotFoundError(s.config.Kind.String()+" ledger", id.String())
}

// publish dispatches the ledger's pending events. Handler failures are
// logged by the bus and never fail the request.
func (s *Service) publish(ctx context.Context, l *ledger.PeriodLedger) {
	events := l.GetDomainEvents()
	l.ClearDomainEvents()
	if s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.Enrich(ctx, s.logger).Warn("failed to publish ledger events",
			zap.String("ledger_id", l.ID.String()),
			zap.Error(err),
		)
	}
}
