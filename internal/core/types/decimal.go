// Package types provides money arithmetic shared by pricing and totals.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is an exact monetary amount. Never build one from a float.
type Money = decimal.Decimal

// CurrencyPlaces is the precision the ledger uses for line and document totals.
const CurrencyPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// Ptr returns a pointer to a copy of m.
func Ptr(m Money) *Money {
	return &m
}

// RoundCurrency rounds half away from zero to two decimals.
func RoundCurrency(m Money) Money {
	return m.Round(CurrencyPlaces)
}

// PercentOf returns m * pct / 100 without rounding.
func PercentOf(m Money, pct decimal.Decimal) Money {
	return m.Mul(pct).Div(hundred)
}

// TaxFactor returns 1 + ratePct/100.
func TaxFactor(ratePct decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(ratePct.Div(hundred))
}

// StripTax recovers the base amount from a tax-inclusive amount.
func StripTax(gross Money, ratePct decimal.Decimal) Money {
	return gross.Div(TaxFactor(ratePct))
}

// AddTax returns the tax-inclusive amount for a base amount.
func AddTax(base Money, ratePct decimal.Decimal) Money {
	return base.Mul(TaxFactor(ratePct))
}
