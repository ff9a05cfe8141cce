// Package billing holds the arithmetic and persistence helpers shared by
// invoices and quotations: line and document totals, document numbering,
// payment status derivation and the line item store.
package billing

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places totals are rounded to.
const MoneyPlaces = 2

const hundredth int32 = -2

// Line is the priced part of a line item.
type Line struct {
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
}

// Subtotal is quantity times unit price, unrounded.
func (l Line) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// Total compounds tax and discount on the line subtotal:
// subtotal * (1 + tax/100) * (1 - discount/100), rounded to cents.
//
// Document totals do not compound; see ComputeTotals.
func (l Line) Total() decimal.Decimal {
	taxFactor := decimal.NewFromInt(1).Add(l.TaxRate.Shift(hundredth))
	discountFactor := decimal.NewFromInt(1).Sub(l.DiscountRate.Shift(hundredth))
	return l.Subtotal().Mul(taxFactor).Mul(discountFactor).Round(MoneyPlaces)
}

// Totals are the four cached figures of a document.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// Balanced reports whether total == subtotal + tax - discount.
func (t Totals) Balanced() bool {
	return t.TotalAmount.Equal(t.Subtotal.Add(t.TaxAmount).Sub(t.DiscountAmount))
}

// ComputeTotals aggregates lines. Tax and discount are each a plain
// percentage of the line subtotal, summed across lines. Subtotal, tax and
// discount are rounded half-up to cents and the total is derived from the
// rounded parts. An empty slice yields zeros.
func ComputeTotals(lines []Line) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	discount := decimal.Zero
	for _, l := range lines {
		sub := l.Subtotal()
		subtotal = subtotal.Add(sub)
		tax = tax.Add(sub.Mul(l.TaxRate).Shift(hundredth))
		discount = discount.Add(sub.Mul(l.DiscountRate).Shift(hundredth))
	}
	return finish(subtotal, tax, discount)
}

// Overrides replace the aggregated tax or discount figure of a document.
type Overrides struct {
	Tax      *decimal.Decimal
	Discount *decimal.Decimal
}

// Apply returns t with any set override substituted and the total rederived.
func (o Overrides) Apply(t Totals) Totals {
	if o.Tax == nil && o.Discount == nil {
		return t
	}
	tax := t.TaxAmount
	discount := t.DiscountAmount
	if o.Tax != nil {
		tax = *o.Tax
	}
	if o.Discount != nil {
		discount = *o.Discount
	}
	return finish(t.Subtotal, tax, discount)
}

func finish(subtotal, tax, discount decimal.Decimal) Totals {
	subtotal = subtotal.Round(MoneyPlaces)
	tax = tax.Round(MoneyPlaces)
	discount = discount.Round(MoneyPlaces)
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		DiscountAmount: discount,
		TotalAmount:    subtotal.Add(tax).Sub(discount),
	}
}
