// Package ledger implements the periodic billing ledger shared by the rent,
// service-fee and unit-bill cycles.
package ledger

import (
	"fmt"
)

// Kind identifies one of the billing cycles
type Kind string

const (
	KindRent     Kind = "rent"
	KindServices Kind = "services"
	KindUnitBill Kind = "unit_bill"
)

// IsValid reports whether k is a known kind
func (k Kind) IsValid() bool {
	switch k {
	case KindRent, KindServices, KindUnitBill:
		return true
	}
	return false
}

// String returns the kind code
func (k Kind) String() string {
	return string(k)
}

// UnknownIDPolicy decides what the reconciler does with patch entries whose id
// is not in the ledger.
type UnknownIDPolicy int

const (
	// PolicyStrict skips the entry and records a warning
	PolicyStrict UnknownIDPolicy = iota
	// PolicyLenient creates a new line item with zero defaults
	PolicyLenient
)

// String returns the policy name
func (p UnknownIDPolicy) String() string {
	if p == PolicyLenient {
		return "lenient"
	}
	return "strict"
}

// Canonical line item field names
const (
	FieldDue       = "due"
	FieldPaid      = "paid"
	FieldRemainder = "remainder"
	FieldTotal     = "total"
)

// Unit-bill extension fields
const (
	ExtUnitID                     = "unit_id"
	ExtUnitNumber                 = "unit_number"
	ExtCustomerName               = "customer_name"
	ExtCustomerFatherName         = "customer_father_name"
	ExtServicesDescription        = "services_description"
	ExtDescription                = "description"
	ExtPreviousWaterReading       = "previous_water_reading"
	ExtCurrentWaterReading        = "current_water_reading"
	ExtPreviousElectricityReading = "previous_electricity_reading"
	ExtCurrentElectricityReading  = "current_electricity_reading"
	ExtWaterCharge                = "water_charge"
	ExtElectricityCharge          = "electricity_charge"
)

// Rent and services extension fields
const (
	ExtShop       = "shop"
	ExtIsApproved = "is_approved"
)

// KindConfig parameterizes the shared ledger engine for one billing cycle
type KindConfig struct {
	Kind Kind
	// DueField is the public name of the Due amount for this kind
	DueField string
	Policy   UnknownIDPolicy
	// RequiresFloor marks floor as part of the period key; without it the
	// snapshot is empty
	RequiresFloor bool
	// UniquePeriod allows only one ledger per period key
	UniquePeriod bool
	// LineApproval copies the ledger approval flag into each line at creation
	LineApproval bool
	// Aliases maps accepted incoming field names to canonical names
	Aliases map[string]string
	// NumericExtensions are extension fields coerced to decimals on patch
	NumericExtensions []string
}

// Canonical returns the canonical name for an incoming line item field
func (c KindConfig) Canonical(field string) string {
	if field == c.DueField {
		return FieldDue
	}
	if canonical, ok := c.Aliases[field]; ok {
		return canonical
	}
	return field
}

// IsNumericExtension reports whether an extension field holds a decimal
func (c KindConfig) IsNumericExtension(field string) bool {
	for _, f := range c.NumericExtensions {
		if f == field {
			return true
		}
	}
	return false
}

var paidAliases = map[string]string{
	"taken":       FieldPaid,
	"amount_paid": FieldPaid,
}

// RentConfig is the rent cycle: one line per active lease on a floor
func RentConfig() KindConfig {
	return KindConfig{
		Kind:          KindRent,
		DueField:      "rent",
		Policy:        PolicyLenient,
		RequiresFloor: true,
		Aliases:       withAliases(paidAliases, map[string]string{"rant": FieldDue}),
	}
}

// ServicesConfig is the service-fee cycle: one line per active lease on a floor
func ServicesConfig() KindConfig {
	return KindConfig{
		Kind:          KindServices,
		DueField:      "service",
		Policy:        PolicyLenient,
		RequiresFloor: true,
		LineApproval:  true,
		Aliases:       withAliases(paidAliases, nil),
	}
}

// UnitBillConfig is the utility cycle: one line per occupied unit per month
func UnitBillConfig() KindConfig {
	return KindConfig{
		Kind:         KindUnitBill,
		DueField:     "service_charge",
		Policy:       PolicyStrict,
		UniquePeriod: true,
		Aliases: withAliases(paidAliases, map[string]string{
			"previous_waterMeter":       ExtPreviousWaterReading,
			"current_waterMeter":        ExtCurrentWaterReading,
			"previous_electricityMeter": ExtPreviousElectricityReading,
			"current_electricityMeter":  ExtCurrentElectricityReading,
			"total_water_price":         ExtWaterCharge,
			"total_electricity":         ExtElectricityCharge,
		}),
		NumericExtensions: []string{
			ExtPreviousWaterReading,
			ExtCurrentWaterReading,
			ExtPreviousElectricityReading,
			ExtCurrentElectricityReading,
			ExtWaterCharge,
			ExtElectricityCharge,
		},
	}
}

// ConfigFor returns the built-in configuration for a kind
func ConfigFor(kind Kind) (KindConfig, error) {
	switch kind {
	case KindRent:
		return RentConfig(), nil
	case KindServices:
		return ServicesConfig(), nil
	case KindUnitBill:
		return UnitBillConfig(), nil
	}
	return KindConfig{}, fmt.Errorf("unknown ledger kind %q", kind)
}

func withAliases(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
