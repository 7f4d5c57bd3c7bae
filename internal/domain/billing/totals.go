package billing

import (
	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/types"
)

// Totals is the informational base-only view of a document.
// The ledger, not this value, is the system of record for tax.
type Totals struct {
	Subtotal types.Money `json:"subtotal"`
	Tax      types.Money `json:"tax"`
	Total    types.Money `json:"total"`
}

// Withholding identifies the withholding tax and its rate.
type Withholding struct {
	TaxID int64
	Rate  decimal.Decimal
}

// LineAmounts is one line priced the way the ledger prices it.
type LineAmounts struct {
	Base          types.Money `json:"base"`
	Discount      types.Money `json:"discount"`
	AfterDiscount types.Money `json:"after_discount"`
	Tax           types.Money `json:"tax"`
	Total         types.Money `json:"total"`
}

// PaymentBreakdown shows how the payment value was reached.
type PaymentBreakdown struct {
	Gross           types.Money `json:"gross"`
	WithholdingBase types.Money `json:"withholding_base"`
	Withholding     types.Money `json:"withholding"`
	Value           types.Money `json:"value"`
}

// unitBase is the tax-exclusive unit price of a line.
func unitBase(l FormattedLine, taxRate decimal.Decimal) types.Money {
	switch {
	case l.Price != nil:
		return *l.Price
	case l.TaxedPrice != nil:
		return types.StripTax(*l.TaxedPrice, taxRate)
	default:
		return types.Zero()
	}
}

// ComputeTotals sums quantity times base price. Tax is subtotal times rate;
// Total mirrors Subtotal.
func ComputeTotals(lines []FormattedLine, taxRate decimal.Decimal) Totals {
	subtotal := types.Zero()
	for _, l := range lines {
		subtotal = subtotal.Add(l.Quantity.Mul(unitBase(l, taxRate)))
	}
	subtotal = types.RoundCurrency(subtotal)
	return Totals{
		Subtotal: subtotal,
		Tax:      types.RoundCurrency(types.PercentOf(subtotal, taxRate)),
		Total:    subtotal,
	}
}

// ComputeLine prices one line with cent rounding at every step: base,
// discount, and tax are each rounded before they are combined. Discount
// always applies before tax. Tax applies when the line carries any tax
// reference.
func ComputeLine(l FormattedLine, taxRate decimal.Decimal) LineAmounts {
	base := types.RoundCurrency(unitBase(l, taxRate).Mul(l.Quantity))

	discount := types.Zero()
	if l.Discount != nil {
		discount = types.RoundCurrency(types.PercentOf(base, *l.Discount))
	}
	after := base.Sub(discount)

	tax := types.Zero()
	if l.Taxed() {
		tax = types.RoundCurrency(types.PercentOf(after, taxRate))
	}

	return LineAmounts{
		Base:          base,
		Discount:      discount,
		AfterDiscount: after,
		Tax:           tax,
		Total:         after.Add(tax),
	}
}

// ComputePayment reproduces the ledger's grand total: per-line amounts
// summed, minus withholding on the after-discount base of lines that carry
// the withholding tax. Rounding only the final total drifts by cents and
// gets the document rejected.
func ComputePayment(lines []FormattedLine, taxRate decimal.Decimal, wh Withholding) PaymentBreakdown {
	gross := types.Zero()
	whBase := types.Zero()
	for _, l := range lines {
		amounts := ComputeLine(l, taxRate)
		gross = gross.Add(amounts.Total)
		if wh.TaxID != 0 && l.HasTax(wh.TaxID) {
			whBase = whBase.Add(amounts.AfterDiscount)
		}
	}

	withheld := types.RoundCurrency(types.PercentOf(whBase, wh.Rate))
	return PaymentBreakdown{
		Gross:           gross,
		WithholdingBase: whBase,
		Withholding:     withheld,
		Value:           types.RoundCurrency(gross.Sub(withheld)),
	}
}

// ComputePaymentValue is the payment amount the ledger will accept.
func ComputePaymentValue(lines []FormattedLine, taxRate decimal.Decimal, wh Withholding) types.Money {
	return ComputePayment(lines, taxRate, wh).Value
}
