package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.siigo.com", cfg.LedgerBaseURL)
	assert.Equal(t, 5, cfg.Executor().MaxRetries)
	assert.Equal(t, time.Second, cfg.Executor().BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Executor().MaxDelay)
	assert.Equal(t, 300*time.Millisecond, cfg.Executor().MinInterval)

	b := cfg.Billing()
	assert.Equal(t, int64(15047), b.InvoiceDocumentID)
	assert.Equal(t, int64(15048), b.QuotationDocumentID)
	assert.Equal(t, int64(388), b.SellerID)
	assert.Equal(t, 30, b.DueDays)
	assert.Equal(t, int64(3467), b.CreditPaymentMethodID)

	p := cfg.Policy()
	assert.True(t, p.UseCatalogPrices)
	assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(19)))
	assert.True(t, p.WithholdingRate.Equal(decimal.RequireFromString("2.5")))
	assert.NoError(t, p.Validate())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_MAX_RETRIES", "2")
	t.Setenv("PRICES_INCLUDE_TAX", "true")
	t.Setenv("DEFAULT_TAX_RATE", "5")
	t.Setenv("FALLBACK_PRODUCT_CODE", "GEN01")
	t.Setenv("LEDGER_PARTNER_ID", "toppingfrozen")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.Logger().Development)
	assert.Equal(t, 2, cfg.Executor().MaxRetries)
	assert.Equal(t, "toppingfrozen", cfg.Ledger().PartnerID)

	p := cfg.Policy()
	assert.True(t, p.PricesIncludeTax)
	assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "GEN01", p.FallbackProductCode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"negative retries", "LEDGER_MAX_RETRIES", "-1", "LEDGER_MAX_RETRIES"},
		{"backoff inverted", "LEDGER_BACKOFF_MAX", "100ms", "LEDGER_BACKOFF_BASE"},
		{"due days", "DUE_DAYS", "400", "DUE_DAYS"},
		{"concurrency", "LINE_CONCURRENCY", "0", "LINE_CONCURRENCY"},
		{"tax rate text", "DEFAULT_TAX_RATE", "nineteen", "DEFAULT_TAX_RATE"},
		{"withholding range", "WITHHOLDING_RATE", "250", "WITHHOLDING_RATE"},
		{"not a number", "SELLER_ID", "abc", "SELLER_ID"},
		{"stock queue without redis", "STOCK_QUEUE", "true", "REDIS_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
