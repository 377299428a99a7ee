package ledger

import (
	"fmt"
	"strings"

	"github.com/propledger/backend/internal/domain/shared"
)

const (
	MinFloor = 1
	MaxFloor = 6
	MinMonth = 1
	MaxMonth = 12
)

// PeriodKey identifies one billing cycle. Floor is 0 when unset; unit bills
// never carry a floor. Month is an opaque code 1..12.
type PeriodKey struct {
	Floor int
	Month int
	Year  string
}

// NewPeriodKey validates the fields for the given kind and builds a key.
// Errors name the offending field.
func NewPeriodKey(cfg KindConfig, floor, month int, year string) (PeriodKey, error) {
	key := PeriodKey{Floor: floor, Month: month, Year: year}
	if err := key.Validate(cfg); err != nil {
		return PeriodKey{}, err
	}
	if !cfg.RequiresFloor {
		key.Floor = 0
	}
	return key, nil
}

// Validate checks the key structure for the given kind
func (k PeriodKey) Validate(cfg KindConfig) error {
	if len(k.Year) != 4 || strings.Trim(k.Year, "0123456789") != "" {
		return shared.NewInvalidPeriodKeyError("year", "year must be a 4 digit number")
	}
	if k.Month < MinMonth || k.Month > MaxMonth {
		return shared.NewInvalidPeriodKeyError("month", fmt.Sprintf("month must be between %d and %d", MinMonth, MaxMonth))
	}
	if cfg.RequiresFloor && k.Floor != 0 && (k.Floor < MinFloor || k.Floor > MaxFloor) {
		return shared.NewInvalidPeriodKeyError("floor", fmt.Sprintf("floor must be between %d and %d", MinFloor, MaxFloor))
	}
	return nil
}

// IsComplete reports whether the key selects any source records
func (k PeriodKey) IsComplete(cfg KindConfig) bool {
	if cfg.RequiresFloor {
		return k.Floor != 0
	}
	return true
}

// String renders the key, e.g. "1403-05/floor-2"
func (k PeriodKey) String() string {
	if k.Floor != 0 {
		return fmt.Sprintf("%s-%02d/floor-%d", k.Year, k.Month, k.Floor)
	}
	return fmt.Sprintf("%s-%02d", k.Year, k.Month)
}

// PeriodPatch carries optional replacements for period key fields
type PeriodPatch struct {
	Floor *int
	Month *int
	Year  *string
}

// IsEmpty reports whether no field is set
func (p PeriodPatch) IsEmpty() bool {
	return p.Floor == nil && p.Month == nil && p.Year == nil
}

// Apply overlays the patch onto k and validates the result
func (p PeriodPatch) Apply(cfg KindConfig, k PeriodKey) (PeriodKey, error) {
	next := k
	if p.Floor != nil {
		next.Floor = *p.Floor
	}
	if p.Month != nil {
		next.Month = *p.Month
	}
	if p.Year != nil {
		next.Year = *p.Year
	}
	return NewPeriodKey(cfg, next.Floor, next.Month, next.Year)
}
