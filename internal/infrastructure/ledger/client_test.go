package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger/ledgertest"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

func newClient(t *testing.T, token string) (*ledger.Client, *ledgertest.Server) {
	t.Helper()

	fake := ledgertest.New(ledgertest.Config{
		Token:     "secret",
		PartnerID: "toppingfrozen",
		Logger:    logger.Nop(),
	})
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	exec := ledger.NewExecutor(ledger.ExecutorConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}, logger.Nop())

	client := ledger.NewClient(ledger.Config{
		BaseURL:   srv.URL + "/v1/",
		PartnerID: "toppingfrozen",
		Timeout:   5 * time.Second,
	}, ledger.StaticToken(token), exec, logger.Nop())
	return client, fake
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := map[string]string{
		"https://api.siigo.com":      "https://api.siigo.com",
		"https://api.siigo.com/":     "https://api.siigo.com",
		"https://api.siigo.com/v1":   "https://api.siigo.com",
		"https://api.siigo.com/v1/":  "https://api.siigo.com",
		" https://api.siigo.com//  ": "https://api.siigo.com",
	}
	for in, want := range tests {
		assert.Equal(t, want, ledger.NormalizeBaseURL(in), in)
	}
}

func TestClient_LookupProduct(t *testing.T) {
	client, fake := newClient(t, "secret")
	fake.AddProduct(ledgertest.Product{
		Code:   "liquipp07",
		Name:   "Liquipops maracuya 350g",
		Price:  decimal.NewFromInt(12500),
		TaxIDs: []int64{8095},
	})
	ctx := context.Background()

	ref, err := client.LookupProduct(ctx, "LIQUIPP07")
	require.NoError(t, err)
	assert.Equal(t, "LIQUIPP07", ref.Code)
	assert.Equal(t, "Liquipops maracuya 350g", ref.Name)
	assert.True(t, ref.BasePrice.Equal(decimal.NewFromInt(12500)))
	require.Len(t, ref.Taxes, 1)
	assert.Equal(t, int64(8095), ref.Taxes[0].ID)
	assert.NotEmpty(t, ref.LedgerID)

	_, err = client.LookupProduct(ctx, "NOPE")
	assert.True(t, apperror.IsNotFound(err))
}

func TestClient_BadTokenIsNotRetried(t *testing.T) {
	client, fake := newClient(t, "wrong")

	_, err := client.LookupProduct(context.Background(), "X")
	require.Error(t, err)

	se, ok := ledger.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, 1, fake.Requests(http.MethodGet, "/v1/products"))
}

func TestClient_RetriesThrottledRequests(t *testing.T) {
	client, fake := newClient(t, "secret")
	fake.AddProduct(ledgertest.Product{Code: "A", Name: "A", Price: decimal.NewFromInt(1)})
	fake.RateLimitNext(2, "")

	_, err := client.LookupProduct(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 3, fake.Requests(http.MethodGet, "/v1/products"))
}

func TestClient_ThrottleExhausted(t *testing.T) {
	client, fake := newClient(t, "secret")
	fake.RateLimitNext(100, "0")

	_, err := client.LookupProduct(context.Background(), "A")
	assert.True(t, apperror.IsRateLimitExceeded(err))
	assert.Equal(t, 4, fake.Requests(http.MethodGet, "/v1/products"))
}

func invoiceRequest(total string) ledger.DocumentRequest {
	return ledger.DocumentRequest{
		Document: ledger.DocumentRef{ID: 15047},
		Date:     "2026-10-16",
		Customer: ledger.CustomerRef{Identification: "900123456"},
		Seller:   388,
		Items: []ledger.ItemRequest{{
			Code:     "A",
			Quantity: json.Number("2"),
			Price:    json.Number("1000.000000"),
			Taxes:    []ledger.TaxRef{{ID: 8095}},
		}},
		Payments: []ledger.PaymentRequest{{ID: 3467, Value: json.Number(total), DueDate: "2026-11-15"}},
	}
}

func TestClient_CreateAndListInvoices(t *testing.T) {
	client, fake := newClient(t, "secret")
	fake.AddProduct(ledgertest.Product{Code: "A", Name: "A", Price: decimal.NewFromInt(1000), TaxIDs: []int64{8095}})
	ctx := context.Background()

	created, err := client.CreateInvoice(ctx, invoiceRequest("2380.00"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Number)
	assert.True(t, created.Total.Equal(decimal.RequireFromString("2380")))
	assert.NotEmpty(t, created.Raw)

	today := time.Now().Format(time.DateOnly)
	page, err := client.ListInvoices(ctx, ledger.ListFilter{CreatedStart: today, CreatedEnd: today})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "900123456", page.Results[0].Customer.Identification)

	got, err := client.GetInvoice(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
}

func TestClient_CreateInvoicePaymentMismatch(t *testing.T) {
	client, fake := newClient(t, "secret")
	fake.AddProduct(ledgertest.Product{Code: "A", Name: "A", Price: decimal.NewFromInt(1000), TaxIDs: []int64{8095}})

	_, err := client.CreateInvoice(context.Background(), invoiceRequest("2380.01"))
	require.Error(t, err)

	se, ok := ledger.AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, string(se.Body), "invalid_total_payments")
	assert.Empty(t, fake.Documents(ledgertest.KindInvoice))
}

func TestListFilterDefaults(t *testing.T) {
	client, _ := newClient(t, "secret")

	page, err := client.ListQuotations(context.Background(), ledger.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 25, page.Pagination.PageSize)
	assert.Empty(t, page.Results)
}
