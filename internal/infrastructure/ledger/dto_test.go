package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductDTO_BasePrice(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "price list wins",
			body: `{"prices":[{"price":5,"price_list":[{"position":1,"value":1200.5}]}],"price":7}`,
			want: "1200.5",
		},
		{
			name: "price entry without list",
			body: `{"prices":[{"price":5}]}`,
			want: "5",
		},
		{
			name: "price entry value",
			body: `{"prices":[{"value":"6"}]}`,
			want: "6",
		},
		{
			name: "flat price",
			body: `{"price":7}`,
			want: "7",
		},
		{
			name: "unit price",
			body: `{"unit_price":8}`,
			want: "8",
		},
		{
			name: "no price",
			body: `{}`,
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p productDTO
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			assert.Equal(t, tt.want, p.basePrice().String())
		})
	}
}

func TestProductDTO_ToReference(t *testing.T) {
	var p productDTO
	body := `{"id":"uuid-1","code":" abc ","name":"","description":"Chamoy 1L","taxes":[{"id":8095},{"id":0}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	ref := p.toReference()
	assert.Equal(t, "ABC", ref.Code)
	assert.Equal(t, "uuid-1", ref.LedgerID)
	assert.Equal(t, "Chamoy 1L", ref.Name)
	require.Len(t, ref.Taxes, 1)
	assert.Equal(t, int64(8095), ref.Taxes[0].ID)
}

func TestListFilterValues(t *testing.T) {
	q := ListFilter{CreatedStart: "2026-10-01", Page: 2, PageSize: 50}.values()
	assert.Equal(t, "2026-10-01", q.Get("created_start"))
	assert.Empty(t, q.Get("created_end"))
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "50", q.Get("page_size"))
}
