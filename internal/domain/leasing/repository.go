package leasing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AgreementReader is the read side used when snapshotting rent and service ledgers
type AgreementReader interface {
	// FindActiveOnFloor returns active agreements on the given floor
	FindActiveOnFloor(ctx context.Context, floor int) ([]Agreement, error)
}

// UnitReader is the read side used when snapshotting unit bills
type UnitReader interface {
	// FindOccupied returns every occupied unit
	FindOccupied(ctx context.Context) ([]Unit, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Unit, error)
}

// UnitRepository adds the single write this service performs on units
type UnitRepository interface {
	UnitReader
	// UpdateMeterReadings stores new current readings for a unit. Nil values
	// leave that meter unchanged. Returns shared.ErrNotFound for unknown ids.
	UpdateMeterReadings(ctx context.Context, id uuid.UUID, water, electricity *decimal.Decimal) error
}
