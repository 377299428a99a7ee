package models

import (
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// PeriodLedgerModel is the persistence model for all three ledger kinds
type PeriodLedgerModel struct {
	AggregateModel
	Kind       ledger.Kind      `gorm:"type:varchar(16);not null;index:idx_period_ledgers_listing,priority:1"`
	Floor      int              `gorm:"type:smallint;not null;default:0;index:idx_period_ledgers_listing,priority:4"`
	Month      int              `gorm:"type:smallint;not null;index:idx_period_ledgers_listing,priority:3"`
	Year       string           `gorm:"type:varchar(4);not null;index:idx_period_ledgers_listing,priority:2"`
	LineItems  ledger.LineItems `gorm:"type:jsonb;not null;default:'{}'"`
	Total      decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	IsApproved bool             `gorm:"column:is_approved;not null;default:false"`
}

// TableName returns the table name for GORM
func (PeriodLedgerModel) TableName() string {
	return "period_ledgers"
}

// ToDomain converts the row to a PeriodLedger
func (m *PeriodLedgerModel) ToDomain() *ledger.PeriodLedger {
	items := m.LineItems
	if items == nil {
		items = ledger.LineItems{}
	}
	return &ledger.PeriodLedger{
		BaseAggregateRoot: m.Root(),
		Kind:              m.Kind,
		Period:            ledger.PeriodKey{Floor: m.Floor, Month: m.Month, Year: m.Year},
		LineItems:         items,
		Total:             m.Total,
		Approved:          m.IsApproved,
	}
}

// PeriodLedgerModelFromDomain builds a row from a PeriodLedger
func PeriodLedgerModelFromDomain(l *ledger.PeriodLedger) *PeriodLedgerModel {
	return &PeriodLedgerModel{
		AggregateModel: aggregateFrom(l.BaseAggregateRoot),
		Kind:           l.Kind,
		Floor:          l.Period.Floor,
		Month:          l.Period.Month,
		Year:           l.Period.Year,
		LineItems:      l.LineItems,
		Total:          l.Total,
		IsApproved:     l.Approved,
	}
}
