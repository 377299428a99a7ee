package leasing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUnit_RecordReadings(t *testing.T) {
	u := &Unit{
		Status: UnitStatusOccupied,
		Readings: MeterReadings{
			CurrentWater:       decimal.NewFromInt(120),
			CurrentElectricity: decimal.NewFromInt(800),
		},
	}

	water := decimal.NewFromInt(135)
	changed := u.RecordReadings(&water, nil)

	assert.True(t, changed)
	assert.True(t, u.Readings.PreviousWater.Equal(decimal.NewFromInt(120)))
	assert.True(t, u.Readings.CurrentWater.Equal(water))
	assert.True(t, u.Readings.CurrentElectricity.Equal(decimal.NewFromInt(800)))
	assert.True(t, u.Readings.PreviousElectricity.IsZero())

	assert.False(t, u.RecordReadings(&water, nil), "same reading is not a change")
}

func TestStatuses(t *testing.T) {
	assert.True(t, UnitStatusOccupied.IsValid())
	assert.False(t, UnitStatus("Rented").IsValid())
	assert.True(t, AgreementStatusInactive.IsValid())
	assert.False(t, AgreementStatus("active").IsValid())

	a := &Agreement{Status: AgreementStatusActive}
	assert.True(t, a.IsActive())
	assert.False(t, a.HasCustomer())
}
