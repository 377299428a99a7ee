package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/leasing"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/propledger/backend/internal/domain/shared/valueobject"
	"github.com/propledger/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MeterReadingSyncHandler writes meter readings changed on a unit bill back
// to the unit, so the next month's snapshot starts from them
type MeterReadingSyncHandler struct {
	units  leasing.UnitRepository
	logger *zap.Logger
}

// NewMeterReadingSyncHandler creates a new handler for unit bill updates
func NewMeterReadingSyncHandler(units leasing.UnitRepository, log *zap.Logger) *MeterReadingSyncHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MeterReadingSyncHandler{units: units, logger: log}
}

// EventTypes returns the event types this handler is interested in
func (h *MeterReadingSyncHandler) EventTypes() []string {
	return []string{ledger.EventTypeLedgerLineItemsUpdated}
}

// Handle applies every meter reading change carried by the event. Units that
// no longer exist are skipped; other failures are collected and returned.
func (h *MeterReadingSyncHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	updated, ok := event.(*ledger.LedgerLineItemsUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			ledger.EventTypeLedgerLineItemsUpdated, event.EventType())
	}
	if updated.Kind != ledger.KindUnitBill || len(updated.MeterReadings) == 0 {
		return nil
	}

	log := logger.Enrich(ctx, h.logger).With(zap.String("ledger_id", updated.AggregateID().String()))

	var errs []error
	for _, change := range updated.MeterReadings {
		unitID, err := uuid.Parse(change.UnitID)
		if err != nil {
			log.Warn("line item does not reference a unit; reading not synced",
				zap.String("line_item_id", change.LineItemID),
				zap.String("unit_id", change.UnitID),
			)
			continue
		}

		water := readingPtr(change.CurrentWater)
		electricity := readingPtr(change.CurrentElectricity)
		if err := h.units.UpdateMeterReadings(ctx, unitID, water, electricity); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				log.Warn("unit not found; reading not synced", zap.String("unit_id", change.UnitID))
				continue
			}
			log.Error("failed to sync meter readings", zap.String("unit_id", change.UnitID), zap.Error(err))
			errs = append(errs, fmt.Errorf("unit %s: %w", change.UnitID, err))
			continue
		}

		log.Info("meter readings synced to unit", zap.String("unit_id", change.UnitID))
	}
	return errors.Join(errs...)
}

func readingPtr(s *string) *decimal.Decimal {
	if s == nil {
		return nil
	}
	d := valueobject.CoerceDecimal(*s, decimal.Zero)
	return &d
}
