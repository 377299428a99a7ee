package ledger

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/propledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Amount renders a decimal as a JSON number with two fractional digits
type Amount decimal.Decimal

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(2)), nil
}

// Decimal returns the underlying decimal
func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

// PeriodInput carries the period key fields as sent by a client. Each value
// may be a JSON string or number; month is also accepted as "time".
type PeriodInput struct {
	Floor json.RawMessage `json:"floor,omitempty"`
	Month json.RawMessage `json:"month,omitempty"`
	Time  json.RawMessage `json:"time,omitempty"`
	Year  json.RawMessage `json:"year,omitempty"`
}

// Patch converts the input to a period patch. Absent and null fields stay nil.
func (p PeriodInput) Patch() (ledger.PeriodPatch, error) {
	var out ledger.PeriodPatch

	floor, err := rawInt("floor", p.Floor)
	if err != nil {
		return out, err
	}
	out.Floor = floor

	monthRaw := p.Month
	if isAbsent(monthRaw) {
		monthRaw = p.Time
	}
	month, err := rawInt("month", monthRaw)
	if err != nil {
		return out, err
	}
	out.Month = month

	year, err := rawText("year", p.Year)
	if err != nil {
		return out, err
	}
	out.Year = year
	return out, nil
}

// Key builds a complete period key for creation. Missing fields are left at
// their zero value and rejected by validation.
func (p PeriodInput) Key(cfg ledger.KindConfig) (ledger.PeriodKey, error) {
	patch, err := p.Patch()
	if err != nil {
		return ledger.PeriodKey{}, err
	}
	return patch.Apply(cfg, ledger.PeriodKey{})
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func rawText(field string, raw json.RawMessage) (*string, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, shared.NewInvalidPeriodKeyError(field, field+" must be a string or number")
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, shared.NewInvalidPeriodKeyError(field, field+" must be a string or number")
		}
		s = n.String()
	}
	s = strings.TrimSpace(s)
	return &s, nil
}

func rawInt(field string, raw json.RawMessage) (*int, error) {
	s, err := rawText(field, raw)
	if err != nil || s == nil {
		return nil, err
	}
	n, convErr := strconv.Atoi(*s)
	if convErr != nil {
		return nil, shared.NewInvalidPeriodKeyError(field, field+" must be a whole number")
	}
	return &n, nil
}

// CreateLedgerInput is the body of a create request
type CreateLedgerInput struct {
	PeriodInput
	IsApproved bool `json:"is_approved"`
}

// PatchLedgerInput is the body of a partial update. line_items may also be
// sent under the legacy names customers_list or unit_details_list.
type PatchLedgerInput struct {
	PeriodInput
	IsApproved      *bool                `json:"is_approved,omitempty"`
	Version         *int                 `json:"version,omitempty" binding:"omitempty,min=1"`
	LineItems       ledger.LineItemPatch `json:"line_items,omitempty"`
	CustomersList   ledger.LineItemPatch `json:"customers_list,omitempty"`
	UnitDetailsList ledger.LineItemPatch `json:"unit_details_list,omitempty"`
}

// Items returns the line item patch, preferring line_items over its aliases
func (in PatchLedgerInput) Items() ledger.LineItemPatch {
	switch {
	case in.LineItems != nil:
		return in.LineItems
	case in.CustomersList != nil:
		return in.CustomersList
	default:
		return in.UnitDetailsList
	}
}

// ListLedgerFilter holds the list query parameters
type ListLedgerFilter struct {
	Year     string `form:"year" binding:"omitempty,len=4,numeric"`
	Month    int    `form:"month" binding:"omitempty,min=1,max=12"`
	Floor    int    `form:"floor" binding:"omitempty,min=1,max=6"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

// LedgerResponse is the rendered form of a ledger
type LedgerResponse struct {
	ID             uuid.UUID                   `json:"id"`
	Kind           ledger.Kind                 `json:"kind"`
	Floor          int                         `json:"floor,omitempty"`
	Month          int                         `json:"month"`
	Year           string                      `json:"year"`
	IsApproved     bool                        `json:"is_approved"`
	LineItems      map[string]LineItemResponse `json:"line_items"`
	Total          Amount                      `json:"total"`
	TotalPaid      Amount                      `json:"total_paid"`
	TotalRemainder Amount                      `json:"total_remainder"`
	Warnings       []ledger.Warning            `json:"warnings"`
	Version        int                         `json:"version"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// LineItemResponse is one rendered line item: its extensions with the
// amounts merged in as numbers
type LineItemResponse map[string]json.RawMessage

// ToLedgerResponse renders a ledger for the given kind configuration
func ToLedgerResponse(cfg ledger.KindConfig, l *ledger.PeriodLedger, warnings []ledger.Warning) LedgerResponse {
	items := make(map[string]LineItemResponse, len(l.LineItems))
	for id, item := range l.LineItems {
		items[id] = renderLineItem(cfg, item)
	}
	if warnings == nil {
		warnings = []ledger.Warning{}
	}
	summary := l.Summary()
	return LedgerResponse{
		ID:             l.ID,
		Kind:           l.Kind,
		Floor:          l.Period.Floor,
		Month:          l.Period.Month,
		Year:           l.Period.Year,
		IsApproved:     l.Approved,
		LineItems:      items,
		Total:          Amount(l.Total),
		TotalPaid:      Amount(summary.TotalPaid),
		TotalRemainder: Amount(summary.TotalRemainder),
		Warnings:       warnings,
		Version:        l.Version,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func renderLineItem(cfg ledger.KindConfig, item ledger.LineItem) LineItemResponse {
	out := make(LineItemResponse, len(item.Extensions)+5)
	for k, v := range item.Extensions {
		if cfg.IsNumericExtension(k) {
			out[k] = number(item.ExtDecimal(k))
			continue
		}
		out[k] = v
	}
	out[ledger.FieldDue] = number(item.Due)
	out[cfg.DueField] = number(item.Due)
	out[ledger.FieldPaid] = number(item.Paid)
	out[ledger.FieldRemainder] = number(item.Remainder)
	if cfg.Kind == ledger.KindUnitBill {
		out["totals"] = number(ledger.LineTotals(cfg.Kind, item))
		out[ledger.FieldRemainder] = number(ledger.LineRemainder(cfg.Kind, item))
	}
	return out
}

func number(d decimal.Decimal) json.RawMessage {
	return json.RawMessage(d.StringFixed(2))
}
