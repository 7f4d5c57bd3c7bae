package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"17.1", "17.10"},
		{"0.005", "0.01"},
		{"-0.005", "-0.01"},
		{"2379.994", "2379.99"},
		{"84.0336134", "84.03"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundCurrency(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestStripTaxRoundTrip(t *testing.T) {
	rate := decimal.NewFromInt(19)

	base := StripTax(decimal.RequireFromString("1190"), rate)
	assert.True(t, base.Equal(decimal.RequireFromString("1000")), "got %s", base)

	gross := AddTax(decimal.RequireFromString("1000"), rate)
	assert.True(t, gross.Equal(decimal.RequireFromString("1190")), "got %s", gross)
}

func TestPercentOf(t *testing.T) {
	got := PercentOf(decimal.RequireFromString("2000"), decimal.RequireFromString("2.5"))
	assert.True(t, got.Equal(decimal.RequireFromString("50")), "got %s", got)
}
