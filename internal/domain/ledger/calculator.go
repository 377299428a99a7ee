package ledger

import "github.com/shopspring/decimal"

// RecomputeTotal sums Due over all line items. The ledger total tracks the
// obligation, not what has been paid.
func RecomputeTotal(items LineItems) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Due)
	}
	return total
}

// Summary holds aggregates computed at read time only
type Summary struct {
	TotalPaid      decimal.Decimal
	TotalRemainder decimal.Decimal
}

// LineTotals is what a line item owes in total. For unit bills the water and
// electricity charges are added to the service charge; other kinds owe Due.
func LineTotals(kind Kind, item LineItem) decimal.Decimal {
	if kind != KindUnitBill {
		return item.Due
	}
	return item.Due.
		Add(item.ExtDecimal(ExtWaterCharge)).
		Add(item.ExtDecimal(ExtElectricityCharge))
}

// LineRemainder is LineTotals minus Paid
func LineRemainder(kind Kind, item LineItem) decimal.Decimal {
	return LineTotals(kind, item).Sub(item.Paid)
}

// Summarize computes the read-time aggregates for display
func Summarize(kind Kind, items LineItems) Summary {
	s := Summary{TotalPaid: decimal.Zero, TotalRemainder: decimal.Zero}
	for _, item := range items {
		s.TotalPaid = s.TotalPaid.Add(item.Paid)
		s.TotalRemainder = s.TotalRemainder.Add(LineRemainder(kind, item))
	}
	return s
}
