package domain

import "github.com/shopspring/decimal"

// TaxRate is the fixed tax rate applied to the subtotal.
var TaxRate = decimal.New(7, -2) // 0.07

// Totals are the derived money figures for a draft. They are recomputed from
// scratch on every snapshot; there is no caching beyond the snapshot itself.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Taxes     decimal.Decimal `json:"taxes"`
	Discounts decimal.Decimal `json:"discounts"`
	Total     decimal.Decimal `json:"total"`
}

// CalculateTotals derives subtotal, taxes, and grand total from the given
// lines. Discounts reduce the total.
func CalculateTotals(items []LineItem, discounts decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for i := range items {
		subtotal = subtotal.Add(items[i].TotalPrice)
	}

	taxes := subtotal.Mul(TaxRate)

	return Totals{
		Subtotal:  subtotal,
		Taxes:     taxes,
		Discounts: discounts,
		Total:     subtotal.Add(taxes).Sub(discounts),
	}
}
