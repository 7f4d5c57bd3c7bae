package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

func strPtr(s string) *string { return &s }

func TestPolicyQuery(t *testing.T) {
	sql, args, err := policyQuery()
	require.NoError(t, err)
	assert.Equal(t, "SELECT config_key, config_value FROM system_config WHERE config_key IN ($1,$2,$3,$4,$5,$6)", sql)
	assert.Len(t, args, len(policyKeys))
	assert.Equal(t, KeyUseCatalogPrices, args[0])
}

func TestApplyConfig(t *testing.T) {
	tests := []struct {
		name  string
		rows  []configRow
		check func(t *testing.T, p pricing.Policy)
	}{
		{
			name: "no rows keeps defaults",
			check: func(t *testing.T, p pricing.Policy) {
				assert.True(t, p.UseCatalogPrices)
				assert.False(t, p.PricesIncludeTax)
				assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(19)))
				assert.Equal(t, int64(8095), p.DefaultTaxID)
			},
		},
		{
			name: "flags",
			rows: []configRow{
				{Key: KeyUseCatalogPrices, Value: strPtr("false")},
				{Key: KeyPricesIncludeTax, Value: strPtr("1")},
				{Key: KeyAdditionalFields, Value: strPtr(" TRUE ")},
			},
			check: func(t *testing.T, p pricing.Policy) {
				assert.False(t, p.UseCatalogPrices)
				assert.True(t, p.PricesIncludeTax)
				assert.True(t, p.AdditionalFields)
			},
		},
		{
			name: "numbers and codes",
			rows: []configRow{
				{Key: KeyTaxRate, Value: strPtr("5")},
				{Key: KeyTaxID, Value: strPtr("9001")},
				{Key: KeyFallbackProductCode, Value: strPtr(" gen01 ")},
			},
			check: func(t *testing.T, p pricing.Policy) {
				assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(5)))
				assert.Equal(t, int64(9001), p.DefaultTaxID)
				assert.Equal(t, "gen01", p.FallbackProductCode)
				assert.Equal(t, "GEN01", p.NormalizedFallback())
			},
		},
		{
			name: "bad values keep defaults",
			rows: []configRow{
				{Key: KeyTaxRate, Value: strPtr("abc")},
				{Key: KeyTaxID, Value: strPtr("-3")},
				{Key: KeyUseCatalogPrices, Value: nil},
			},
			check: func(t *testing.T, p pricing.Policy) {
				assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(19)))
				assert.Equal(t, int64(8095), p.DefaultTaxID)
				assert.True(t, p.UseCatalogPrices)
			},
		},
		{
			name: "zero rate keeps default",
			rows: []configRow{{Key: KeyTaxRate, Value: strPtr("0")}},
			check: func(t *testing.T, p pricing.Policy) {
				assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(19)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := applyConfig(context.Background(), pricing.DefaultPolicy(), tt.rows, logger.Nop())
			tt.check(t, p)
			assert.NoError(t, p.Validate())
		})
	}
}

func TestApplyConfig_DoesNotAliasDefaults(t *testing.T) {
	base := pricing.DefaultPolicy()
	p := applyConfig(context.Background(), base, nil, logger.Nop())
	p.BarcodePrefixes[0] = "999"
	assert.Equal(t, "770", base.BarcodePrefixes[0])
}
