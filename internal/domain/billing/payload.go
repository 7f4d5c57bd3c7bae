package billing

import (
	"encoding/json"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/types"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
)

// BuildRequest maps a prepared document to the ledger wire format.
// Quotations never carry a payments block.
func BuildRequest(doc *PreparedDocument) ledger.DocumentRequest {
	req := ledger.DocumentRequest{
		Document: ledger.DocumentRef{ID: doc.DocumentTypeID},
		Date:     doc.Date,
		Customer: ledger.CustomerRef{
			Identification: doc.Customer.Identification,
			BranchOffice:   doc.Customer.BranchOffice,
		},
		Seller:       doc.SellerID,
		Observations: doc.Observations,
		Items:        make([]ledger.ItemRequest, 0, len(doc.Lines)),
	}

	for _, l := range doc.Lines {
		item := ledger.ItemRequest{
			Code:        l.Code,
			Description: l.Description,
			Quantity:    json.Number(l.Quantity.String()),
		}
		if l.Price != nil {
			item.Price = json.Number(l.Price.StringFixed(doc.Kind.PricePlaces()))
		}
		if l.TaxedPrice != nil {
			item.TaxedPrice = json.Number(l.TaxedPrice.StringFixed(types.CurrencyPlaces))
		}
		if l.Discount != nil {
			item.Discount = json.Number(l.Discount.String())
		}
		for _, t := range l.Taxes {
			item.Taxes = append(item.Taxes, ledger.TaxRef{ID: t.ID})
		}
		req.Items = append(req.Items, item)
	}

	if doc.Kind.SendsPayments() {
		req.Payments = []ledger.PaymentRequest{{
			ID:      doc.Payment.MethodID,
			Value:   json.Number(doc.Payment.Value.StringFixed(types.CurrencyPlaces)),
			DueDate: doc.Payment.DueDate,
		}}
	}

	if af := doc.AdditionalFields; af != nil {
		fields := &ledger.AdditionalFields{}
		if af.PurchaseOrder != "" {
			fields.PurchaseOrder = &ledger.OrderRef{Number: af.PurchaseOrder}
		}
		if af.DeliveryOrder != "" {
			fields.DeliveryOrder = &ledger.OrderRef{Number: af.DeliveryOrder}
		}
		req.AdditionalFields = fields
	}
	return req
}
