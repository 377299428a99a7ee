package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/propledger/backend/internal/domain/leasing"
	"github.com/propledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// SourceQuery loads the starting line items for a period from a source collaborator
type SourceQuery func(ctx context.Context, key PeriodKey) (LineItems, error)

// Snapshot is the materialized starting state of a new ledger
type Snapshot struct {
	Items LineItems
	Total decimal.Decimal
	// Err is set when the source query failed and the snapshot was degraded to empty
	Err error
}

// Degraded reports whether the source query failed
func (s Snapshot) Degraded() bool {
	return s.Err != nil
}

// SnapshotBuilder materializes line items at ledger creation time
type SnapshotBuilder struct {
	config KindConfig
	query  SourceQuery
}

// NewSnapshotBuilder creates a builder for a kind backed by a source query
func NewSnapshotBuilder(cfg KindConfig, query SourceQuery) *SnapshotBuilder {
	return &SnapshotBuilder{config: cfg, query: query}
}

// Build queries the source and returns the line items with their total. An
// incomplete key yields an empty snapshot. A failing source also yields an
// empty snapshot, with the cause kept in Snapshot.Err.
func (b *SnapshotBuilder) Build(ctx context.Context, key PeriodKey) Snapshot {
	empty := Snapshot{Items: LineItems{}, Total: decimal.Zero}
	if !key.IsComplete(b.config) || b.query == nil {
		return empty
	}

	items, err := b.query(ctx, key)
	if err != nil {
		empty.Err = fmt.Errorf("snapshot %s %s: %w", b.config.Kind, key, err)
		return empty
	}
	if items == nil {
		items = LineItems{}
	}
	return Snapshot{Items: items, Total: RecomputeTotal(items)}
}

// AgreementSource snapshots active agreements on the key's floor, one line
// per customer. amount selects the due amount for the kind. Agreements
// without a customer are skipped; several agreements of one customer on the
// same floor are folded into one line.
func AgreementSource(reader leasing.AgreementReader, amount func(leasing.Agreement) decimal.Decimal) SourceQuery {
	return func(ctx context.Context, key PeriodKey) (LineItems, error) {
		agreements, err := reader.FindActiveOnFloor(ctx, key.Floor)
		if err != nil {
			return nil, err
		}

		items := make(LineItems, len(agreements))
		shops := make(map[string][]string, len(agreements))
		for _, a := range agreements {
			if !a.IsActive() || a.Floor != key.Floor || !a.HasCustomer() {
				continue
			}
			id := a.CustomerID.String()
			shops[id] = append(shops[id], a.Shops...)

			if existing, ok := items[id]; ok {
				existing.Due = existing.Due.Add(amount(a))
				existing.Recompute()
				existing.SetExt(ExtShop, nonNil(shops[id]))
				items[id] = existing
				continue
			}

			item := NewLineItem(amount(a), nil)
			item.SetExt(ExtShop, nonNil(shops[id]))
			item.SetExt(ExtCustomerName, a.CustomerName)
			items[id] = item
		}
		return items, nil
	}
}

// RentSource snapshots the monthly rent of each active agreement
func RentSource(reader leasing.AgreementReader) SourceQuery {
	return AgreementSource(reader, func(a leasing.Agreement) decimal.Decimal { return a.Rent })
}

// ServicesSource snapshots the monthly service fee of each active agreement
func ServicesSource(reader leasing.AgreementReader) SourceQuery {
	return AgreementSource(reader, func(a leasing.Agreement) decimal.Decimal { return a.Service })
}

// UnitSource snapshots every occupied unit with its service charge and meter readings
func UnitSource(reader leasing.UnitReader) SourceQuery {
	return func(ctx context.Context, _ PeriodKey) (LineItems, error) {
		units, err := reader.FindOccupied(ctx)
		if err != nil {
			return nil, err
		}

		items := make(LineItems, len(units))
		for _, u := range units {
			if !u.IsOccupied() {
				continue
			}
			customer := u.CustomerName
			if customer == "" {
				customer = "N/A"
			}
			ext := map[string]json.RawMessage{
				ExtPreviousWaterReading:       valueobject.DecimalText(u.Readings.PreviousWater),
				ExtCurrentWaterReading:        valueobject.DecimalText(u.Readings.CurrentWater),
				ExtPreviousElectricityReading: valueobject.DecimalText(u.Readings.PreviousElectricity),
				ExtCurrentElectricityReading:  valueobject.DecimalText(u.Readings.CurrentElectricity),
				ExtWaterCharge:                valueobject.DecimalText(decimal.Zero),
				ExtElectricityCharge:          valueobject.DecimalText(decimal.Zero),
			}
			item := NewLineItem(u.ServiceCharge, ext)
			item.SetExt(ExtUnitID, u.ID.String())
			item.SetExt(ExtUnitNumber, u.UnitNumber)
			item.SetExt(ExtCustomerName, customer)
			item.SetExt(ExtCustomerFatherName, u.CustomerFatherName)
			item.SetExt(ExtServicesDescription, u.ServicesDescription)
			item.SetExt(ExtDescription, "")
			items[u.ID.String()] = item
		}
		return items, nil
	}
}

// SourceFor returns the built-in source query for a kind
func SourceFor(kind Kind, agreements leasing.AgreementReader, units leasing.UnitReader) (SourceQuery, error) {
	switch kind {
	case KindRent:
		return RentSource(agreements), nil
	case KindServices:
		return ServicesSource(agreements), nil
	case KindUnitBill:
		return UnitSource(units), nil
	}
	return nil, fmt.Errorf("unknown ledger kind %q", kind)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
