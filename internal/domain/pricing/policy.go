// Package pricing holds the pricing policy that drives line formatting and
// the document kinds the ledger accepts.
package pricing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
)

// Policy is read once per preparation call and threaded explicitly through
// formatting and reconciliation. The engine never mutates it.
type Policy struct {
	// UseCatalogPrices makes the ledger catalog authoritative for price,
	// description and taxes of every resolved line.
	UseCatalogPrices bool

	// PricesIncludeTax marks input prices (caller or catalog) as tax-inclusive.
	PricesIncludeTax bool

	// DefaultTaxRate is the VAT percentage, e.g. 19.
	DefaultTaxRate decimal.Decimal

	// DefaultTaxID is the ledger tax applied when a line has no tax set.
	DefaultTaxID int64

	// FallbackProductCode is probed when no candidate code resolves.
	FallbackProductCode string

	// WithholdingTaxID references the withholding (retefuente) tax.
	WithholdingTaxID int64

	// WithholdingRate is the withholding percentage, e.g. 2.5.
	WithholdingRate decimal.Decimal

	// AdditionalFields enables purchase/delivery order summaries on the document.
	AdditionalFields bool

	// BarcodePrefixes lists GS1 prefixes that mark long numeric codes as barcodes.
	BarcodePrefixes []string
}

// DefaultPolicy mirrors the ledger account's configured defaults.
func DefaultPolicy() Policy {
	return Policy{
		UseCatalogPrices: true,
		PricesIncludeTax: false,
		DefaultTaxRate:   decimal.NewFromInt(19),
		DefaultTaxID:     8095,
		WithholdingTaxID: 8101,
		WithholdingRate:  decimal.RequireFromString("2.5"),
		BarcodePrefixes:  []string{"770"},
	}
}

// Validate checks the policy is usable for arithmetic.
func (p Policy) Validate() error {
	var problems []string
	if p.DefaultTaxRate.IsNegative() {
		problems = append(problems, "default tax rate must not be negative")
	}
	if p.WithholdingRate.IsNegative() {
		problems = append(problems, "withholding rate must not be negative")
	}
	if len(problems) > 0 {
		return apperror.NewValidationList(problems)
	}
	return nil
}

// NormalizedFallback returns the fallback code trimmed and uppercased.
func (p Policy) NormalizedFallback() string {
	return strings.ToUpper(strings.TrimSpace(p.FallbackProductCode))
}

// Source supplies the current pricing policy.
type Source interface {
	Policy(ctx context.Context) (Policy, error)
}

// StaticSource always returns the same policy.
type StaticSource struct {
	policy Policy
}

// NewStaticSource creates a source for a fixed policy.
func NewStaticSource(p Policy) *StaticSource {
	return &StaticSource{policy: p}
}

// Policy implements Source.
func (s *StaticSource) Policy(ctx context.Context) (Policy, error) {
	p := s.policy
	p.BarcodePrefixes = append([]string(nil), s.policy.BarcodePrefixes...)
	return p, nil
}

var _ Source = (*StaticSource)(nil)
