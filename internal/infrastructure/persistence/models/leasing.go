package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/leasing"
	"github.com/shopspring/decimal"
)

// StringList is a JSONB array of strings
type StringList []string

// Scan implements sql.Scanner
func (s *StringList) Scan(value any) error {
	if value == nil {
		*s = StringList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("type assertion to []byte or string failed")
	}
	out := StringList{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*s = out
	return nil
}

// Value implements driver.Valuer
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// AgreementModel is the persistence model for lease agreements
type AgreementModel struct {
	BaseModel
	CustomerID   *uuid.UUID              `gorm:"type:uuid"`
	CustomerName string                  `gorm:"type:varchar(200);not null;default:''"`
	Status       leasing.AgreementStatus `gorm:"type:varchar(16);not null;default:'Active';index:idx_agreements_floor_status,priority:2"`
	Floor        int                     `gorm:"type:smallint;not null;index:idx_agreements_floor_status,priority:1"`
	Shops        StringList              `gorm:"type:jsonb;not null;default:'[]'"`
	Rent         decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Service      decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Advance      decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (AgreementModel) TableName() string {
	return "agreements"
}

// ToDomain converts the row to an Agreement
func (m *AgreementModel) ToDomain() leasing.Agreement {
	shops := []string(m.Shops)
	if shops == nil {
		shops = []string{}
	}
	return leasing.Agreement{
		BaseEntity:   m.Entity(),
		CustomerID:   m.CustomerID,
		CustomerName: m.CustomerName,
		Status:       m.Status,
		Floor:        m.Floor,
		Shops:        shops,
		Rent:         m.Rent,
		Service:      m.Service,
		Advance:      m.Advance,
	}
}

// AgreementModelFromDomain builds a row from an Agreement
func AgreementModelFromDomain(a *leasing.Agreement) *AgreementModel {
	return &AgreementModel{
		BaseModel:    baseFrom(a.BaseEntity),
		CustomerID:   a.CustomerID,
		CustomerName: a.CustomerName,
		Status:       a.Status,
		Floor:        a.Floor,
		Shops:        StringList(a.Shops),
		Rent:         a.Rent,
		Service:      a.Service,
		Advance:      a.Advance,
	}
}

// UnitModel is the persistence model for rentable units
type UnitModel struct {
	BaseModel
	UnitNumber                 string             `gorm:"type:varchar(50);not null;uniqueIndex:uq_units_unit_number"`
	Status                     leasing.UnitStatus `gorm:"type:varchar(16);not null;default:'Vacant';index"`
	CustomerName               string             `gorm:"type:varchar(200);not null;default:''"`
	CustomerFatherName         string             `gorm:"type:varchar(200);not null;default:''"`
	ServicesDescription        string             `gorm:"type:text;not null;default:''"`
	ServiceCharge              decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	PreviousWaterReading       decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	CurrentWaterReading        decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	PreviousElectricityReading decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
	CurrentElectricityReading  decimal.Decimal    `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (UnitModel) TableName() string {
	return "units"
}

// ToDomain converts the row to a Unit
func (m *UnitModel) ToDomain() leasing.Unit {
	return leasing.Unit{
		BaseEntity:          m.Entity(),
		UnitNumber:          m.UnitNumber,
		Status:              m.Status,
		CustomerName:        m.CustomerName,
		CustomerFatherName:  m.CustomerFatherName,
		ServicesDescription: m.ServicesDescription,
		ServiceCharge:       m.ServiceCharge,
		Readings: leasing.MeterReadings{
			PreviousWater:       m.PreviousWaterReading,
			CurrentWater:        m.CurrentWaterReading,
			PreviousElectricity: m.PreviousElectricityReading,
			CurrentElectricity:  m.CurrentElectricityReading,
		},
	}
}

// UnitModelFromDomain builds a row from a Unit
func UnitModelFromDomain(u *leasing.Unit) *UnitModel {
	return &UnitModel{
		BaseModel:                  baseFrom(u.BaseEntity),
		UnitNumber:                 u.UnitNumber,
		Status:                     u.Status,
		CustomerName:               u.CustomerName,
		CustomerFatherName:         u.CustomerFatherName,
		ServicesDescription:        u.ServicesDescription,
		ServiceCharge:              u.ServiceCharge,
		PreviousWaterReading:       u.Readings.PreviousWater,
		CurrentWaterReading:        u.Readings.CurrentWater,
		PreviousElectricityReading: u.Readings.PreviousElectricity,
		CurrentElectricityReading:  u.Readings.CurrentElectricity,
	}
}

// AllModels lists every model, for AutoMigrate in tests
func AllModels() []any {
	return []any{&AgreementModel{}, &UnitModel{}, &PeriodLedgerModel{}}
}
