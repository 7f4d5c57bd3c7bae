package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferCandidates(t *testing.T) {
	prefixes := []string{"770"}

	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{
			name: "barcode listed first loses to internal code",
			raw:  []string{"7701234567890", "ABC"},
			want: []string{"ABC", "7701234567890"},
		},
		{
			name: "normalizes and dedupes",
			raw:  []string{" abc ", "ABC", "", "liquipp07"},
			want: []string{"ABC", "LIQUIPP07"},
		},
		{
			name: "numeric code without known prefix keeps its place",
			raw:  []string{"123456789012", "ABC"},
			want: []string{"123456789012", "ABC"},
		},
		{
			name: "short numeric code is not a barcode",
			raw:  []string{"77012", "ABC"},
			want: []string{"77012", "ABC"},
		},
		{
			name: "only barcodes keep order",
			raw:  []string{"7709999999999", "7701111111111"},
			want: []string{"7709999999999", "7701111111111"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PreferCandidates(tt.raw, prefixes))
		})
	}
}

func TestIsLikelyBarcode(t *testing.T) {
	assert.True(t, IsLikelyBarcode("7701234567890", []string{"770"}))
	assert.False(t, IsLikelyBarcode("7701234567890", []string{"780"}))
	assert.True(t, IsLikelyBarcode("123456789012", nil))
	assert.False(t, IsLikelyBarcode("77012345678A9", nil))
	assert.False(t, IsLikelyBarcode("ABC", nil))
}
