// Package billing turns caller orders into ledger-compliant invoices and
// quotations and submits them.
package billing

import (
	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/types"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
)

// LineSource tells where a formatted line's identity came from.
type LineSource string

const (
	// SourceCatalog: resolved from the ledger catalog.
	SourceCatalog LineSource = "catalog"
	// SourceFallback: only the configured fallback product resolved. Low confidence.
	SourceFallback LineSource = "fallback"
	// SourceCaller: catalog missed or was not consulted; caller data used.
	SourceCaller LineSource = "caller"
	// SourceTemporary: no usable code at all; a code was synthesized from the name.
	SourceTemporary LineSource = "temporary"
)

// OrderLine is one raw item as supplied by the caller.
type OrderLine struct {
	// Candidates are possible product codes in caller priority order
	// (internal, external, barcode, text-derived).
	Candidates      []string         `json:"candidates"`
	Name            string           `json:"name"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       *types.Money     `json:"unit_price,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	// TaxID overrides the default tax. A zero id marks the line exempt.
	TaxID  *int64 `json:"tax_id,omitempty"`
	Exempt bool   `json:"exempt,omitempty"`
}

// IsExempt reports whether the line must carry no VAT.
func (l OrderLine) IsExempt() bool {
	return l.Exempt || (l.TaxID != nil && *l.TaxID == 0)
}

// FormattedLine is a document line in the ledger's shape.
// Exactly one of Price and TaxedPrice is set.
type FormattedLine struct {
	Code        string           `json:"code"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Price       *types.Money     `json:"price,omitempty"`
	TaxedPrice  *types.Money     `json:"taxed_price,omitempty"`
	Description string           `json:"description"`
	Taxes       []catalog.TaxRef `json:"taxes,omitempty"`
	Discount    *decimal.Decimal `json:"discount,omitempty"`
	Source      LineSource       `json:"source"`
}

// HasTax reports whether the line references tax id.
func (l FormattedLine) HasTax(id int64) bool {
	return catalog.HasTax(l.Taxes, id)
}

// Taxed reports whether the line carries any tax reference. The ledger
// charges VAT on every such line, withholding-only ones included.
func (l FormattedLine) Taxed() bool {
	return len(l.Taxes) > 0
}

// Customer identifies the buyer in the ledger.
type Customer struct {
	Identification string `json:"identification"`
	BranchOffice   int    `json:"branch_office" validate:"gte=0"`
}

// DocumentOptions are per-call settings. Zero values take Config defaults.
type DocumentOptions struct {
	DocumentTypeID  int64            `json:"document_type_id" validate:"gte=0"`
	SellerID        int64            `json:"seller_id" validate:"gte=0"`
	DueDays         *int             `json:"due_days,omitempty" validate:"omitempty,gte=0,lte=365"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	// ApplyWithholding attaches the withholding tax to every non-exempt line.
	ApplyWithholding bool `json:"apply_withholding"`
	// PaymentMethodID is accepted for the record but always replaced by
	// the configured credit method.
	PaymentMethodID int64 `json:"payment_method_id" validate:"gte=0"`
	// PaymentMethodName and ShippingPaymentMethod feed the purchase-order summary.
	PaymentMethodName     string `json:"payment_method_name" validate:"max=120"`
	ShippingPaymentMethod string `json:"shipping_payment_method" validate:"max=120"`
}

// PaymentBlock is the single payment record sent with invoices.
type PaymentBlock struct {
	MethodID int64       `json:"method_id"`
	Value    types.Money `json:"value"`
	DueDate  string      `json:"due_date"`
}

// AdditionalFields are short summaries shown on the ledger document.
type AdditionalFields struct {
	PurchaseOrder string `json:"purchase_order,omitempty"`
	DeliveryOrder string `json:"delivery_order,omitempty"`
}

// PreparedDocument is ready to submit. Treat as immutable.
type PreparedDocument struct {
	Kind             pricing.DocumentKind `json:"-"`
	DocumentTypeID   int64                `json:"document_type_id"`
	Date             string               `json:"date"`
	Customer         Customer             `json:"customer"`
	SellerID         int64                `json:"seller_id"`
	Observations     string               `json:"observations"`
	AdditionalFields *AdditionalFields    `json:"additional_fields,omitempty"`
	Lines            []FormattedLine      `json:"lines"`
	Payment          PaymentBlock         `json:"payment"`
	Breakdown        PaymentBreakdown     `json:"breakdown"`
	Totals           Totals               `json:"totals"`
	TaxRate          decimal.Decimal      `json:"tax_rate"`
}

// Config holds the account-level identifiers the ledger expects.
type Config struct {
	InvoiceDocumentID     int64
	QuotationDocumentID   int64
	SellerID              int64
	DueDays               int
	CreditPaymentMethodID int64
	// LineConcurrency bounds parallel line formatting per document.
	LineConcurrency int
}

// DefaultConfig returns the identifiers of the production ledger account.
func DefaultConfig() Config {
	return Config{
		InvoiceDocumentID:     15047,
		QuotationDocumentID:   15048,
		SellerID:              388,
		DueDays:               30,
		CreditPaymentMethodID: 3467,
		LineConcurrency:       4,
	}
}

func (c Config) documentTypeID(kind pricing.DocumentKind) int64 {
	if kind == pricing.Quotation {
		return c.QuotationDocumentID
	}
	return c.InvoiceDocumentID
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.InvoiceDocumentID == 0 {
		c.InvoiceDocumentID = def.InvoiceDocumentID
	}
	if c.QuotationDocumentID == 0 {
		c.QuotationDocumentID = def.QuotationDocumentID
	}
	if c.SellerID == 0 {
		c.SellerID = def.SellerID
	}
	if c.DueDays <= 0 {
		c.DueDays = def.DueDays
	}
	if c.CreditPaymentMethodID == 0 {
		c.CreditPaymentMethodID = def.CreditPaymentMethodID
	}
	if c.LineConcurrency <= 0 {
		c.LineConcurrency = def.LineConcurrency
	}
	return c
}
