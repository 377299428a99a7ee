package event

import (
	"context"
	"sync/atomic"

	"github.com/propledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyStats counts outcomes of an IdempotentHandler.
type IdempotencyStats struct {
	Processed int64 `json:"processed"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

// IdempotentHandler runs the wrapped handler at most once per event id
// within the configured TTL.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger

	processed atomic.Int64
	duplicate atomic.Int64
	failed    atomic.Int64
}

// NewIdempotentHandler wraps handler.
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, cfg shared.IdempotencyConfig, log *zap.Logger) *IdempotentHandler {
	return &IdempotentHandler{handler: handler, store: store, config: cfg, logger: log}
}

// EventTypes delegates to the wrapped handler.
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle marks the event id before processing. A store failure is logged
// and the event is processed anyway. The mark is kept when the handler
// fails so a redelivery storm cannot hammer the target; it expires with
// the TTL.
func (h *IdempotentHandler) Handle(ctx context.Context, evt shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, evt)
	}

	id := evt.EventID().String()
	fresh, err := h.store.MarkProcessed(ctx, id, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", id), zap.String("event_type", evt.EventType()), zap.Error(err))
	case !fresh:
		h.duplicate.Add(1)
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", id), zap.String("event_type", evt.EventType()))
		return nil
	}

	if err := h.handler.Handle(ctx, evt); err != nil {
		h.failed.Add(1)
		return err
	}
	h.processed.Add(1)
	return nil
}

// Stats returns a snapshot of the counters.
func (h *IdempotentHandler) Stats() IdempotencyStats {
	return IdempotencyStats{
		Processed: h.processed.Load(),
		Duplicate: h.duplicate.Load(),
		Failed:    h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
