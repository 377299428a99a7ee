package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	itemsSheet   = "line_items"
)

// BuildXLSX renders a statement workbook with a summary sheet and a line item sheet
func BuildXLSX(s Statement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	summary := [][]any{
		{s.Title()},
		{},
		{"Kind", string(s.Kind)},
		{"Year", s.Period.Year},
		{"Month", s.Period.Month},
	}
	if s.Period.Floor != 0 {
		summary = append(summary, []any{"Floor", s.Period.Floor})
	}
	summary = append(summary,
		[]any{"Approved", s.Approved},
		[]any{"Version", s.Version},
		[]any{"Generated", s.GeneratedAt.Format(time.RFC3339)},
		[]any{},
		[]any{"Total", s.Total.InexactFloat64()},
		[]any{"Total Paid", s.TotalPaid.InexactFloat64()},
		[]any{"Total Remainder", s.TotalRemainder.InexactFloat64()},
	)
	for i, row := range summary {
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}

	unitBill := len(s.Rows) > 0 && s.Rows[0].Totals != nil
	header := []any{"ID", "Label", "Due", "Paid"}
	if unitBill {
		header = append(header, "Totals")
	}
	header = append(header, "Remainder")
	if err := f.SetSheetRow(itemsSheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, r := range s.Rows {
		values := []any{r.ID, r.Label, r.Due.InexactFloat64(), r.Paid.InexactFloat64()}
		if unitBill {
			values = append(values, r.Totals.InexactFloat64())
		}
		values = append(values, r.Remainder.InexactFloat64())
		if err := f.SetSheetRow(itemsSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return nil, err
		}
	}

	footer := []any{"", "Total", s.Total.InexactFloat64(), s.TotalPaid.InexactFloat64()}
	if unitBill {
		footer = append(footer, "")
	}
	footer = append(footer, s.TotalRemainder.InexactFloat64())
	if err := f.SetSheetRow(itemsSheet, fmt.Sprintf("A%d", len(s.Rows)+2), &footer); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
