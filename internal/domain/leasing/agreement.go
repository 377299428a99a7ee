// Package leasing holds the source records the billing ledgers snapshot from:
// lease agreements and rentable units. They are maintained elsewhere; this
// service only reads them, apart from the meter-reading write-back on units.
package leasing

import (
	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AgreementStatus is the lifecycle state of a lease agreement
type AgreementStatus string

const (
	AgreementStatusActive   AgreementStatus = "Active"
	AgreementStatusInactive AgreementStatus = "InActive"
)

// IsValid reports whether s is a known status
func (s AgreementStatus) IsValid() bool {
	return s == AgreementStatusActive || s == AgreementStatusInactive
}

// Agreement is a lease binding a customer to one or more shops on a floor
type Agreement struct {
	shared.BaseEntity
	CustomerID   *uuid.UUID
	CustomerName string
	Status       AgreementStatus
	Floor        int
	Shops        []string
	Rent         decimal.Decimal
	Service      decimal.Decimal
	Advance      decimal.Decimal
}

// IsActive reports whether the agreement is billable
func (a *Agreement) IsActive() bool {
	return a.Status == AgreementStatusActive
}

// HasCustomer reports whether the agreement is linked to a customer
func (a *Agreement) HasCustomer() bool {
	return a.CustomerID != nil && *a.CustomerID != uuid.Nil
}
