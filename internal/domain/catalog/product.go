// Package catalog resolves arbitrary item identifiers to the ledger's
// canonical product references.
package catalog

import (
	"github.com/shopspring/decimal"
)

// TaxRef references a tax configured in the ledger.
type TaxRef struct {
	ID int64 `json:"id"`
}

// ProductReference is the catalog-authoritative identity of a line item.
// Treated as immutable once cached.
type ProductReference struct {
	Code      string          `json:"code"`
	LedgerID  string          `json:"ledger_id,omitempty"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"base_price"`
	Taxes     []TaxRef        `json:"taxes,omitempty"`
}

// HasPrice reports whether the catalog supplied a usable price.
func (p ProductReference) HasPrice() bool {
	return p.BasePrice.IsPositive()
}

// Clone returns a copy that shares no slices with p.
func (p ProductReference) Clone() ProductReference {
	c := p
	if p.Taxes != nil {
		c.Taxes = append([]TaxRef(nil), p.Taxes...)
	}
	return c
}

// HasTax reports whether refs contains id.
func HasTax(refs []TaxRef, id int64) bool {
	for _, r := range refs {
		if r.ID == id {
			return true
		}
	}
	return false
}
