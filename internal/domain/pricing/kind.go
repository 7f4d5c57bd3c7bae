package pricing

import "strings"

// DocumentKind is the closed set of document shapes the ledger accepts.
// Each kind carries its formatting rules as data so the pipeline resolves
// them once instead of re-checking a type flag in every layer.
type DocumentKind struct {
	name             string
	pricePlaces      int32
	allowsTaxedPrice bool
	sendsPayments    bool
}

var (
	// Invoice accepts 6-decimal base prices or a tax-inclusive taxed price,
	// and carries a payments block that must equal the ledger's total.
	Invoice = DocumentKind{name: "invoice", pricePlaces: 6, allowsTaxedPrice: true, sendsPayments: true}

	// Quotation rejects taxed prices and anything beyond 2 decimals (422 upstream).
	Quotation = DocumentKind{name: "quotation", pricePlaces: 2, allowsTaxedPrice: false, sendsPayments: false}
)

// String returns the kind name.
func (k DocumentKind) String() string { return k.name }

// PricePlaces is the number of decimals the base price is rounded to.
func (k DocumentKind) PricePlaces() int32 { return k.pricePlaces }

// AllowsTaxedPrice reports whether lines may carry a tax-inclusive price
// for the ledger to back-calculate.
func (k DocumentKind) AllowsTaxedPrice() bool { return k.allowsTaxedPrice }

// SendsPayments reports whether the wire payload includes the payments block.
func (k DocumentKind) SendsPayments() bool { return k.sendsPayments }

// IsZero reports whether k is the zero value (no kind selected).
func (k DocumentKind) IsZero() bool { return k.name == "" }

// ParseKind maps a kind name to its DocumentKind.
func ParseKind(name string) (DocumentKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Invoice.name:
		return Invoice, true
	case Quotation.name:
		return Quotation, true
	default:
		return DocumentKind{}, false
	}
}
