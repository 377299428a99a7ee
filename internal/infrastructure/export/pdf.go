package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BuildPDF renders a one-table statement on A4 pages
func BuildPDF(s Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, s.Title())
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	period := fmt.Sprintf("Period: %s-%02d", s.Period.Year, s.Period.Month)
	if s.Period.Floor != 0 {
		period += fmt.Sprintf("  Floor: %d", s.Period.Floor)
	}
	pdf.Cell(0, 6, period)
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Approved: %t  Version: %d", s.Approved, s.Version))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", s.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	unitBill := len(s.Rows) > 0 && s.Rows[0].Totals != nil
	widths := []float64{70, 28, 28, 28}
	headers := []string{"Line item", "Due", "Paid", "Remainder"}
	if unitBill {
		widths = []float64{62, 24, 24, 28, 28}
		headers = []string{"Line item", "Due", "Paid", "Totals", "Remainder"}
	}

	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, r := range s.Rows {
		label := r.Label
		if label == "" {
			label = r.ID
		}
		cells := []string{truncate(label, 40), money(r.Due), money(r.Paid)}
		if unitBill {
			cells = append(cells, money(*r.Totals))
		}
		cells = append(cells, money(r.Remainder))
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 9)
	totals := []string{"Total", money(s.Total), money(s.TotalPaid)}
	if unitBill {
		totals = append(totals, "")
	}
	totals = append(totals, money(s.TotalRemainder))
	for i, c := range totals {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
