package leasing

import (
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// UnitStatus is the occupancy state of a unit
type UnitStatus string

const (
	UnitStatusOccupied    UnitStatus = "Occupied"
	UnitStatusVacant      UnitStatus = "Vacant"
	UnitStatusMaintenance UnitStatus = "Maintenance"
)

// IsValid reports whether s is a known status
func (s UnitStatus) IsValid() bool {
	switch s {
	case UnitStatusOccupied, UnitStatusVacant, UnitStatusMaintenance:
		return true
	}
	return false
}

// MeterReadings holds the water and electricity meter positions of a unit
type MeterReadings struct {
	PreviousWater       decimal.Decimal
	CurrentWater        decimal.Decimal
	PreviousElectricity decimal.Decimal
	CurrentElectricity  decimal.Decimal
}

// Unit is a physical unit or shop with its occupier stored inline
type Unit struct {
	shared.BaseEntity
	UnitNumber          string
	Status              UnitStatus
	CustomerName        string
	CustomerFatherName  string
	ServicesDescription string
	ServiceCharge       decimal.Decimal
	Readings            MeterReadings
}

// IsOccupied reports whether the unit is billable
func (u *Unit) IsOccupied() bool {
	return u.Status == UnitStatusOccupied
}

// RecordReadings moves the current positions to previous and stores the new
// ones. A nil argument leaves that meter untouched.
func (u *Unit) RecordReadings(water, electricity *decimal.Decimal) bool {
	changed := false
	if water != nil && !water.Equal(u.Readings.CurrentWater) {
		u.Readings.PreviousWater = u.Readings.CurrentWater
		u.Readings.CurrentWater = *water
		changed = true
	}
	if electricity != nil && !electricity.Equal(u.Readings.CurrentElectricity) {
		u.Readings.PreviousElectricity = u.Readings.CurrentElectricity
		u.Readings.CurrentElectricity = *electricity
		changed = true
	}
	if changed {
		u.Touch()
	}
	return changed
}

// ClearOccupier drops occupier details; vacant units keep none
func (u *Unit) ClearOccupier() {
	u.CustomerName = ""
	u.CustomerFatherName = ""
}
