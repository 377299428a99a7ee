package ledger

import (
	"encoding/json"

	"github.com/propledger/backend/internal/domain/shared"
)

// AggregateTypeLedger is the aggregate type carried by ledger events
const AggregateTypeLedger = "PeriodLedger"

// Event types
const (
	EventTypeLedgerCreated          = "ledger.created"
	EventTypeLedgerLineItemsUpdated = "ledger.line_items_updated"
	EventTypeLedgerDeleted          = "ledger.deleted"
)

// LedgerCreatedEvent is raised once, when the snapshot is taken
type LedgerCreatedEvent struct {
	shared.BaseDomainEvent
	Kind          Kind   `json:"kind"`
	Period        string `json:"period"`
	LineItemCount int    `json:"line_item_count"`
	Total         string `json:"total"`
}

// NewLedgerCreatedEvent builds the creation event for l
func NewLedgerCreatedEvent(l *PeriodLedger) *LedgerCreatedEvent {
	return &LedgerCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerCreated, AggregateTypeLedger, l.ID),
		Kind:            l.Kind,
		Period:          l.Period.String(),
		LineItemCount:   len(l.LineItems),
		Total:           l.Total.StringFixed(2),
	}
}

// MeterReadingChange carries new current meter readings from a unit-bill line
type MeterReadingChange struct {
	LineItemID         string  `json:"line_item_id"`
	UnitID             string  `json:"unit_id"`
	CurrentWater       *string `json:"current_water,omitempty"`
	CurrentElectricity *string `json:"current_electricity,omitempty"`
}

// LedgerLineItemsUpdatedEvent is raised when a patch changed line items
type LedgerLineItemsUpdatedEvent struct {
	shared.BaseDomainEvent
	Kind          Kind                 `json:"kind"`
	Version       int                  `json:"version"`
	Changed       map[string][]string  `json:"changed"`
	Created       []string             `json:"created,omitempty"`
	MeterReadings []MeterReadingChange `json:"meter_readings,omitempty"`
}

// NewLedgerLineItemsUpdatedEvent builds the update event from a reconcile result
func NewLedgerLineItemsUpdatedEvent(l *PeriodLedger, result ReconcileResult) *LedgerLineItemsUpdatedEvent {
	return &LedgerLineItemsUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerLineItemsUpdated, AggregateTypeLedger, l.ID),
		Kind:            l.Kind,
		Version:         l.Version,
		Changed:         result.Changed,
		Created:         result.Created,
		MeterReadings:   meterReadingChanges(l, result),
	}
}

func meterReadingChanges(l *PeriodLedger, result ReconcileResult) []MeterReadingChange {
	if l.Kind != KindUnitBill {
		return nil
	}
	var changes []MeterReadingChange
	for _, id := range l.LineItems.IDs() {
		fields, ok := result.Changed[id]
		if !ok {
			continue
		}
		item := l.LineItems[id]
		change := MeterReadingChange{LineItemID: id, UnitID: item.ExtString(ExtUnitID)}
		for _, f := range fields {
			switch f {
			case ExtCurrentWaterReading:
				v := item.ExtDecimal(f).StringFixed(2)
				change.CurrentWater = &v
			case ExtCurrentElectricityReading:
				v := item.ExtDecimal(f).StringFixed(2)
				change.CurrentElectricity = &v
			}
		}
		if change.CurrentWater != nil || change.CurrentElectricity != nil {
			if change.UnitID == "" {
				change.UnitID = id
			}
			changes = append(changes, change)
		}
	}
	return changes
}

// LedgerDeletedEvent is raised after a ledger is removed. It carries the
// final document so subscribers can archive it.
type LedgerDeletedEvent struct {
	shared.BaseDomainEvent
	Kind     Kind            `json:"kind"`
	Period   string          `json:"period"`
	Document json.RawMessage `json:"document"`
}

// NewLedgerDeletedEvent builds the deletion event for l
func NewLedgerDeletedEvent(l *PeriodLedger) *LedgerDeletedEvent {
	doc, _ := json.Marshal(l.Document())
	return &LedgerDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerDeleted, AggregateTypeLedger, l.ID),
		Kind:            l.Kind,
		Period:          l.Period.String(),
		Document:        doc,
	}
}

