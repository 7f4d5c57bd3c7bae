package ledger

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
)

// Wire types for the ledger REST API. Amounts travel as json.Number so the
// exact rounded decimal string reaches the ledger unchanged.

type DocumentRef struct {
	ID int64 `json:"id"`
}

type CustomerRef struct {
	Identification string `json:"identification"`
	BranchOffice   int    `json:"branch_office"`
}

type TaxRef struct {
	ID int64 `json:"id"`
}

type ItemRequest struct {
	Code        string      `json:"code"`
	Description string      `json:"description,omitempty"`
	Quantity    json.Number `json:"quantity"`
	Price       json.Number `json:"price,omitempty"`
	TaxedPrice  json.Number `json:"taxed_price,omitempty"`
	Discount    json.Number `json:"discount,omitempty"`
	Taxes       []TaxRef    `json:"taxes,omitempty"`
}

type PaymentRequest struct {
	ID      int64       `json:"id"`
	Value   json.Number `json:"value"`
	DueDate string      `json:"due_date"`
}

type OrderRef struct {
	Number string `json:"number"`
}

type AdditionalFields struct {
	PurchaseOrder *OrderRef `json:"purchase_order,omitempty"`
	DeliveryOrder *OrderRef `json:"delivery_order,omitempty"`
}

// DocumentRequest is the body of POST /v1/invoices and POST /v1/quotations.
type DocumentRequest struct {
	Document         DocumentRef       `json:"document"`
	Date             string            `json:"date"`
	Customer         CustomerRef       `json:"customer"`
	Seller           int64             `json:"seller"`
	Observations     string            `json:"observations"`
	AdditionalFields *AdditionalFields `json:"additional_fields,omitempty"`
	Items            []ItemRequest     `json:"items"`
	Payments         []PaymentRequest  `json:"payments,omitempty"`
}

// CreatedDocument is the ledger's answer to a successful create.
type CreatedDocument struct {
	ID     string          `json:"id"`
	Number int64           `json:"number"`
	Name   string          `json:"name"`
	Total  decimal.Decimal `json:"total"`
	Raw    json.RawMessage `json:"-"`
}

// RemoteDocument is a document as returned by the list and get endpoints.
type RemoteDocument struct {
	ID       string          `json:"id"`
	Number   int64           `json:"number"`
	Name     string          `json:"name"`
	Date     string          `json:"date"`
	Total    decimal.Decimal `json:"total"`
	Customer struct {
		Identification string `json:"identification"`
	} `json:"customer"`
	Observations string `json:"observations"`
	Metadata     struct {
		Created string `json:"created"`
	} `json:"metadata"`
}

type Pagination struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalResults int `json:"total_results"`
}

type DocumentPage struct {
	Pagination Pagination       `json:"pagination"`
	Results    []RemoteDocument `json:"results"`
}

// ListFilter narrows GET /v1/invoices and GET /v1/quotations.
// Dates are YYYY-MM-DD; empty fields are not sent.
type ListFilter struct {
	CreatedStart string
	CreatedEnd   string
	UpdatedStart string
	UpdatedEnd   string
	Page         int
	PageSize     int
}

func (f ListFilter) values() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("created_start", f.CreatedStart)
	set("created_end", f.CreatedEnd)
	set("updated_start", f.UpdatedStart)
	set("updated_end", f.UpdatedEnd)

	page, size := f.Page, f.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 25
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	return q
}

// --- product catalog wire shape ---

type productPage struct {
	Results []productDTO `json:"results"`
}

type priceListEntry struct {
	Position int              `json:"position"`
	Value    *decimal.Decimal `json:"value"`
}

type priceEntry struct {
	Price     *decimal.Decimal `json:"price"`
	Value     *decimal.Decimal `json:"value"`
	PriceList []priceListEntry `json:"price_list"`
}

type productDTO struct {
	ID          string           `json:"id"`
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Prices      []priceEntry     `json:"prices"`
	Price       *decimal.Decimal `json:"price"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Taxes       []TaxRef         `json:"taxes"`
}

// basePrice picks the first price the ledger exposes, in the order
// price list, price entry, flat field.
func (p productDTO) basePrice() decimal.Decimal {
	if len(p.Prices) > 0 {
		first := p.Prices[0]
		if len(first.PriceList) > 0 && first.PriceList[0].Value != nil {
			return *first.PriceList[0].Value
		}
		if first.Price != nil {
			return *first.Price
		}
		if first.Value != nil {
			return *first.Value
		}
	}
	if p.Price != nil {
		return *p.Price
	}
	if p.UnitPrice != nil {
		return *p.UnitPrice
	}
	return decimal.Zero
}

func (p productDTO) toReference() catalog.ProductReference {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = strings.TrimSpace(p.Description)
	}

	var taxes []catalog.TaxRef
	for _, t := range p.Taxes {
		if t.ID != 0 {
			taxes = append(taxes, catalog.TaxRef{ID: t.ID})
		}
	}

	return catalog.ProductReference{
		Code:      catalog.NormalizeCode(p.Code),
		LedgerID:  p.ID,
		Name:      name,
		BasePrice: p.basePrice(),
		Taxes:     taxes,
	}
}
