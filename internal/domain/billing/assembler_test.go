package billing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type failingSource struct{ err error }

func (f failingSource) Policy(context.Context) (pricing.Policy, error) {
	return pricing.Policy{}, f.err
}

func newTestAssembler(policy pricing.Policy, products ...catalog.ProductReference) *Assembler {
	f, _ := newTestFormatter(products...)
	a := NewAssembler(DefaultConfig(), pricing.NewStaticSource(policy), f, logger.Nop())
	a.now = func() time.Time { return fixedNow }
	return a
}

func validRequest() PrepareRequest {
	return PrepareRequest{
		Customer: Customer{Identification: " 900123456 "},
		Items: []OrderLine{
			{Candidates: []string{"ABC"}, Name: "Item", Quantity: dec("2")},
		},
		Notes: "Entregar en bodega",
	}
}

func errorList(t *testing.T, err error) []string {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "want AppError, got %v", err)
	list, _ := appErr.Detail("errors").([]string)
	return list
}

func TestPrepare_AggregatesValidationErrors(t *testing.T) {
	a := newTestAssembler(pricing.DefaultPolicy())

	_, err := a.Prepare(context.Background(), pricing.Invoice, PrepareRequest{
		Customer: Customer{Identification: "  "},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, StageNotSent, StageOf(err))

	list := errorList(t, err)
	assert.Contains(t, list, "customer identification is required")
	assert.Contains(t, list, "at least one item is required")
}

func TestPrepare_ItemValidation(t *testing.T) {
	policy := pricing.DefaultPolicy()
	policy.UseCatalogPrices = false
	a := newTestAssembler(policy)

	_, err := a.Prepare(context.Background(), pricing.Quotation, PrepareRequest{
		Customer: Customer{Identification: "1", BranchOffice: -1},
		Items: []OrderLine{
			{Quantity: dec("0")},
			{Candidates: []string{"A"}, Quantity: dec("1"), UnitPrice: decPtr("-3"), DiscountPercent: decPtr("150")},
		},
		Options: DocumentOptions{DueDays: intPtr(400)},
	})
	require.Error(t, err)

	list := errorList(t, err)
	assert.Contains(t, list, "item 1: a product code or name is required")
	assert.Contains(t, list, "item 1: quantity must be greater than zero")
	assert.Contains(t, list, "item 1: unit price is required")
	assert.Contains(t, list, "item 2: unit price must not be negative")
	assert.Contains(t, list, "item 2: discount must be between 0 and 100")
	assert.Contains(t, list, "customer.BranchOffice: must satisfy gte=0")
	assert.Contains(t, list, "options.DueDays: must satisfy lte=365")
}

func TestPrepare_LineProblemsAreAggregated(t *testing.T) {
	a := newTestAssembler(pricing.DefaultPolicy())

	req := validRequest()
	req.Items = []OrderLine{
		{Candidates: []string{"NOPE1"}, Quantity: dec("1")},
		{Candidates: []string{"NOPE2"}, Quantity: dec("1")},
	}
	_, err := a.Prepare(context.Background(), pricing.Invoice, req)
	require.Error(t, err)

	list := errorList(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, StageNotSent, StageOf(err))
}

func TestPrepare_Invoice(t *testing.T) {
	a := newTestAssembler(pricing.DefaultPolicy(), taxedProduct("ABC", "1000"))

	req := validRequest()
	req.Options = DocumentOptions{PaymentMethodID: 999}
	doc, err := a.Prepare(context.Background(), pricing.Invoice, req)
	require.NoError(t, err)

	assert.Equal(t, int64(15047), doc.DocumentTypeID)
	assert.Equal(t, int64(388), doc.SellerID)
	assert.Equal(t, "900123456", doc.Customer.Identification)
	assert.Equal(t, "2026-10-16", doc.Date)
	assert.Equal(t, "2026-11-15", doc.Payment.DueDate)
	assert.Equal(t, int64(3467), doc.Payment.MethodID, "credit method is always forced")
	assert.True(t, doc.Payment.Value.Equal(dec("2380")), "payment %s", doc.Payment.Value)
	assert.True(t, doc.Totals.Subtotal.Equal(dec("2000")))
	assert.Nil(t, doc.AdditionalFields)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "Catalog ABC", doc.Lines[0].Description)
}

func TestPrepare_QuotationNeverHasTaxedPrice(t *testing.T) {
	policy := pricing.DefaultPolicy()
	policy.PricesIncludeTax = true
	a := newTestAssembler(policy, taxedProduct("ABC", "1190"), taxedProduct("DEF", "999.99"))

	req := validRequest()
	req.Items = append(req.Items, OrderLine{Candidates: []string{"DEF"}, Quantity: dec("3")})
	doc, err := a.Prepare(context.Background(), pricing.Quotation, req)
	require.NoError(t, err)

	assert.Equal(t, int64(15048), doc.DocumentTypeID)
	for _, l := range doc.Lines {
		assert.Nil(t, l.TaxedPrice)
		require.NotNil(t, l.Price)
		assert.LessOrEqual(t, -l.Price.Exponent(), int32(2))
	}
}

func TestPrepare_LinesKeepOrder(t *testing.T) {
	products := make([]catalog.ProductReference, 0, 12)
	req := validRequest()
	req.Items = nil
	for _, code := range strings.Split("A B C D E F G H I J K L", " ") {
		products = append(products, taxedProduct(code, "1"))
		req.Items = append(req.Items, OrderLine{Candidates: []string{code}, Quantity: dec("1")})
	}
	a := newTestAssembler(pricing.DefaultPolicy(), products...)

	doc, err := a.Prepare(context.Background(), pricing.Invoice, req)
	require.NoError(t, err)
	for i, l := range doc.Lines {
		assert.Equal(t, req.Items[i].Candidates[0], l.Code)
	}
}

func TestPrepare_ObservationsAndAdditionalFields(t *testing.T) {
	policy := pricing.DefaultPolicy()
	policy.AdditionalFields = true
	a := newTestAssembler(policy, taxedProduct("ABC", "1"))

	req := validRequest()
	req.Notes = strings.Repeat("n", 600)
	req.OriginalRequest = "2 cajas de  ABC\npara el lunes"
	req.Options = DocumentOptions{PaymentMethodName: "Transferencia", ShippingPaymentMethod: "Contraentrega"}

	doc, err := a.Prepare(context.Background(), pricing.Invoice, req)
	require.NoError(t, err)

	assert.Len(t, doc.Observations, 500)
	require.NotNil(t, doc.AdditionalFields)
	assert.True(t, strings.HasPrefix(doc.AdditionalFields.PurchaseOrder, "Medio: Transferencia | Envío: Contraentrega | Notas: "))
	assert.LessOrEqual(t, len([]rune(doc.AdditionalFields.PurchaseOrder)), 60)
	assert.Equal(t, "2 cajas de ABC para el lunes", doc.AdditionalFields.DeliveryOrder)
}

func TestPrepare_DueDaysOverride(t *testing.T) {
	a := newTestAssembler(pricing.DefaultPolicy(), taxedProduct("ABC", "1"))

	req := validRequest()
	req.Options.DueDays = intPtr(0)
	doc, err := a.Prepare(context.Background(), pricing.Invoice, req)
	require.NoError(t, err)
	assert.Equal(t, doc.Date, doc.Payment.DueDate)
}

func TestPrepare_PolicyFailure(t *testing.T) {
	f, _ := newTestFormatter()
	a := NewAssembler(DefaultConfig(), failingSource{err: errors.New("db down")}, f, logger.Nop())

	_, err := a.Prepare(context.Background(), pricing.Invoice, validRequest())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInternal))
	assert.Equal(t, StageNotSent, StageOf(err))
}

func intPtr(v int) *int {
	return &v
}
