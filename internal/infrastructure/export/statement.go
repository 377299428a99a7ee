// Package export renders ledger statements as XLSX and PDF documents.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/propledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// Format is an export file format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "xlsx" or "pdf", case-insensitively. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// StatementRow is one line item of a statement
type StatementRow struct {
	ID        string
	Label     string
	Due       decimal.Decimal
	Paid      decimal.Decimal
	Remainder decimal.Decimal
	// Totals is set for unit bills only
	Totals *decimal.Decimal
}

// Statement is the printable form of a ledger
type Statement struct {
	Kind           ledger.Kind
	Period         ledger.PeriodKey
	Approved       bool
	Version        int
	GeneratedAt    time.Time
	Rows           []StatementRow
	Total          decimal.Decimal
	TotalPaid      decimal.Decimal
	TotalRemainder decimal.Decimal
}

// NewStatement builds a statement from a ledger. Rows are ordered by label,
// then id.
func NewStatement(l *ledger.PeriodLedger, now time.Time) Statement {
	rows := make([]StatementRow, 0, len(l.LineItems))
	for id, item := range l.LineItems {
		row := StatementRow{
			ID:        id,
			Label:     rowLabel(item),
			Due:       item.Due,
			Paid:      item.Paid,
			Remainder: ledger.LineRemainder(l.Kind, item),
		}
		if l.Kind == ledger.KindUnitBill {
			totals := ledger.LineTotals(l.Kind, item)
			row.Totals = &totals
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Label != rows[j].Label {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].ID < rows[j].ID
	})

	summary := l.Summary()
	return Statement{
		Kind:           l.Kind,
		Period:         l.Period,
		Approved:       l.Approved,
		Version:        l.Version,
		GeneratedAt:    now,
		Rows:           rows,
		Total:          l.Total,
		TotalPaid:      summary.TotalPaid,
		TotalRemainder: summary.TotalRemainder,
	}
}

func rowLabel(item ledger.LineItem) string {
	var parts []string
	if unit := item.ExtString(ledger.ExtUnitNumber); unit != "" {
		parts = append(parts, unit)
	}
	if name := item.ExtString(ledger.ExtCustomerName); name != "" {
		parts = append(parts, name)
	}
	var shops []string
	if err := json.Unmarshal(item.Ext(ledger.ExtShop), &shops); err == nil && len(shops) > 0 {
		parts = append(parts, "shop "+strings.Join(shops, ","))
	}
	return strings.Join(parts, " / ")
}

// Title is the heading printed on the statement
func (s Statement) Title() string {
	switch s.Kind {
	case ledger.KindRent:
		return "Rent Statement"
	case ledger.KindServices:
		return "Service Fee Statement"
	case ledger.KindUnitBill:
		return "Unit Bill Statement"
	}
	return "Statement"
}

// Filename is <kind>-<year>-<month>[-floor-N].<ext>
func (s Statement) Filename(f Format) string {
	name := fmt.Sprintf("%s-%s-%02d", s.Kind, s.Period.Year, s.Period.Month)
	if s.Period.Floor != 0 {
		name += fmt.Sprintf("-floor-%d", s.Period.Floor)
	}
	return name + "." + string(f)
}

// Render encodes the statement in the given format
func Render(s Statement, f Format) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return BuildXLSX(s)
	case FormatPDF:
		return BuildPDF(s)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
