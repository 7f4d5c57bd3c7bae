// Package ledgertest is an in-process fake of the ledger REST API for tests
// and local development. It keeps its own catalog, recomputes document
// totals with the ledger's per-line rounding and rejects payloads the real
// ledger would refuse.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

const (
	KindInvoice   = "invoice"
	KindQuotation = "quotation"
)

// Product is a catalog entry served by the fake.
type Product struct {
	ID     string
	Code   string
	Name   string
	Price  decimal.Decimal
	TaxIDs []int64
}

// StoredDocument is a document the fake accepted.
type StoredDocument struct {
	ID        string
	Number    int64
	Name      string
	Kind      string
	Date      string
	Total     decimal.Decimal
	CreatedAt time.Time
	Request   ledger.DocumentRequest
}

// Config configures a fake ledger.
type Config struct {
	// Token, when set, is required as the bearer token.
	Token string
	// PartnerID, when set, is required in the Partner-Id header.
	PartnerID string
	// VATRates maps tax ids to VAT percentages. Default {8095: 19}.
	VATRates map[int64]decimal.Decimal
	// DefaultVATRate applies to lines whose tax references are all
	// non-VAT ids. Default 19.
	DefaultVATRate decimal.Decimal
	// Withholdings maps tax ids to withholding percentages. Default {8101: 2.5}.
	Withholdings map[int64]decimal.Decimal
	// AcceptUnknownCodes skips the catalog check on submitted items.
	AcceptUnknownCodes bool
	Logger             *logger.Logger
	Now                func() time.Time
}

type apiError struct {
	Code    string   `json:"Code"`
	Message string   `json:"Message"`
	Params  []string `json:"Params,omitempty"`
}

type failure struct {
	status int
	body   any
}

// Server is the fake ledger.
type Server struct {
	mu            sync.Mutex
	token         string
	partnerID     string
	vat           map[int64]decimal.Decimal
	defaultVAT    decimal.Decimal
	withholdings  map[int64]decimal.Decimal
	acceptUnknown bool
	now           func() time.Time
	log           *logger.Logger

	products      map[string]Product
	rateLimitLeft int
	retryAfter    string
	failures      []failure
	requests      map[string]int
	documents     []StoredDocument
	seq           map[string]int64

	engine *gin.Engine
}

// New builds a fake ledger with an empty catalog.
func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		token:         cfg.Token,
		partnerID:     cfg.PartnerID,
		vat:           cfg.VATRates,
		defaultVAT:    cfg.DefaultVATRate,
		withholdings:  cfg.Withholdings,
		acceptUnknown: cfg.AcceptUnknownCodes,
		now:           cfg.Now,
		log:           cfg.Logger.OrDefault().WithComponent("ledgertest"),
		products:      make(map[string]Product),
		requests:      make(map[string]int),
		seq:           make(map[string]int64),
	}
	if s.vat == nil {
		s.vat = map[int64]decimal.Decimal{8095: decimal.NewFromInt(19)}
	}
	if s.defaultVAT.IsZero() {
		s.defaultVAT = decimal.NewFromInt(19)
	}
	if s.withholdings == nil {
		s.withholdings = map[int64]decimal.Decimal{8101: decimal.RequireFromString("2.5")}
	}
	if s.now == nil {
		s.now = time.Now
	}

	router := gin.New()
	router.Use(recovery(s.log))
	router.Use(trace())
	router.Use(requestLog(s.log))

	v1 := router.Group("/v1")
	v1.Use(s.throttle())
	v1.Use(s.auth())
	{
		v1.GET("/products", s.getProducts)
		v1.POST("/invoices", s.createDocument(KindInvoice))
		v1.POST("/quotations", s.createDocument(KindQuotation))
		v1.GET("/invoices", s.listDocuments(KindInvoice))
		v1.GET("/quotations", s.listDocuments(KindQuotation))
		v1.GET("/invoices/:id", s.getInvoice)
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine = router
	return s
}

// Handler returns the HTTP handler, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// AddProduct registers a catalog product under its normalized code.
func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.products[p.Code] = p
}

// RateLimitNext answers the next n API requests with 429.
// A non-empty retryAfter is sent as the Retry-After header.
func (s *Server) RateLimitNext(n int, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitLeft = n
	s.retryAfter = retryAfter
}

// FailNext answers the next document create with status and body.
// Failures queue up in call order.
func (s *Server) FailNext(status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, body: body})
}

// Requests counts calls to a route, e.g. Requests("GET", "/v1/products").
func (s *Server) Requests(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[method+" "+route]
}

// Documents returns accepted documents of a kind in creation order.
func (s *Server) Documents(kind string) []StoredDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StoredDocument
	for _, d := range s.documents {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func (s *Server) getProducts(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Query("code")))

	s.mu.Lock()
	p, ok := s.products[code]
	s.mu.Unlock()

	results := []gin.H{}
	if ok {
		taxes := make([]gin.H, 0, len(p.TaxIDs))
		for _, id := range p.TaxIDs {
			taxes = append(taxes, gin.H{"id": id})
		}
		results = append(results, gin.H{
			"id":   p.ID,
			"code": p.Code,
			"name": p.Name,
			"prices": []gin.H{{
				"currency_code": "COP",
				"price_list": []gin.H{{
					"position": 1,
					"name":     "Precio de venta 1",
					"value":    p.Price,
				}},
			}},
			"taxes": taxes,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"pagination": gin.H{"page": 1, "page_size": 1, "total_results": len(results)},
		"results":    results,
	})
}

func (s *Server) createDocument(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if f, ok := s.popFailure(); ok {
			c.JSON(f.status, f.body)
			return
		}

		var req ledger.DocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid_json", err.Error()))
			return
		}

		if errs := s.validate(kind, req); len(errs) > 0 {
			status := http.StatusBadRequest
			if kind == KindQuotation {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"Errors": errs, "Status": status})
			return
		}

		total, errs := s.documentTotal(req)
		if len(errs) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"Errors": errs, "Status": http.StatusBadRequest})
			return
		}

		if kind == KindInvoice {
			paid := decimal.Zero
			for _, p := range req.Payments {
				v, err := decimal.NewFromString(p.Value.String())
				if err != nil {
					c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid_value", "payment value", "payments.value"))
					return
				}
				paid = paid.Add(v)
			}
			if !paid.Equal(total) {
				c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid_total_payments",
					fmt.Sprintf("The total payments (%s) must equal the invoice total (%s)", paid.StringFixed(2), total.StringFixed(2)),
					"payments"))
				return
			}
		}

		doc := s.store(kind, req, total)
		c.JSON(http.StatusCreated, gin.H{
			"id":     doc.ID,
			"number": doc.Number,
			"name":   doc.Name,
			"date":   doc.Date,
			"total":  doc.Total,
		})
	}
}

func (s *Server) listDocuments(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end := c.Query("created_start"), c.Query("created_end")
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("page_size", "25"))
		if page < 1 {
			page = 1
		}
		if size < 1 {
			size = 25
		}

		var matched []StoredDocument
		for _, d := range s.Documents(kind) {
			created := d.CreatedAt.Format(time.DateOnly)
			if start != "" && created < start {
				continue
			}
			if end != "" && created > end {
				continue
			}
			matched = append(matched, d)
		}
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Number < matched[j].Number })

		from := (page - 1) * size
		results := []gin.H{}
		for i := from; i < len(matched) && i < from+size; i++ {
			results = append(results, documentView(matched[i]))
		}

		c.JSON(http.StatusOK, gin.H{
			"pagination": gin.H{"page": page, "page_size": size, "total_results": len(matched)},
			"results":    results,
		})
	}
}

func (s *Server) getInvoice(c *gin.Context) {
	id := c.Param("id")
	for _, d := range s.Documents(KindInvoice) {
		if d.ID == id {
			c.JSON(http.StatusOK, documentView(d))
			return
		}
	}
	c.JSON(http.StatusNotFound, errorBody(http.StatusNotFound, "not_found", "Invoice not found", "id"))
}

func (s *Server) popFailure() (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return failure{}, false
	}
	f := s.failures[0]
	s.failures = s.failures[1:]
	return f, true
}

func (s *Server) store(kind string, req ledger.DocumentRequest, total decimal.Decimal) StoredDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[kind]++
	prefix := "FV-1"
	if kind == KindQuotation {
		prefix = "C-1"
	}
	now := s.now()
	doc := StoredDocument{
		ID:        uuid.New().String(),
		Number:    s.seq[kind],
		Name:      fmt.Sprintf("%s-%d", prefix, s.seq[kind]),
		Kind:      kind,
		Date:      req.Date,
		Total:     total,
		CreatedAt: now,
		Request:   req,
	}
	s.documents = append(s.documents, doc)
	return doc
}

// validate applies the ledger's structural rules.
func (s *Server) validate(kind string, req ledger.DocumentRequest) []apiError {
	var errs []apiError
	add := func(code, msg string, params ...string) {
		errs = append(errs, apiError{Code: code, Message: msg, Params: params})
	}

	if req.Document.ID == 0 {
		add("invalid_reference", "The document type is required", "document.id")
	}
	if strings.TrimSpace(req.Customer.Identification) == "" {
		add("invalid_reference", "The customer identification is required", "customer.identification")
	}
	if req.Seller == 0 {
		add("invalid_reference", "The seller is required", "seller")
	}
	if len(req.Items) == 0 {
		add("invalid_reference", "At least one item is required", "items")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range req.Items {
		if !s.acceptUnknown {
			if _, ok := s.products[strings.ToUpper(it.Code)]; !ok {
				add("invalid_reference", fmt.Sprintf("Item %d: product code %q does not exist", i+1, it.Code), "items.code")
			}
		}
		hasPrice, hasTaxed := it.Price != "", it.TaxedPrice != ""
		switch {
		case hasPrice == hasTaxed:
			add("invalid_price", fmt.Sprintf("Item %d: exactly one of price or taxed_price is required", i+1), "items.price")
		case kind == KindQuotation && hasTaxed:
			add("invalid_price", fmt.Sprintf("Item %d: quotations do not accept taxed_price", i+1), "items.price")
		case kind == KindQuotation && decimalPlaces(it.Price) > 2:
			add("invalid_price", fmt.Sprintf("Item %d: price supports at most 2 decimals", i+1), "items.price")
		}
		if q, err := decimal.NewFromString(it.Quantity.String()); err != nil || !q.IsPositive() {
			add("invalid_quantity", fmt.Sprintf("Item %d: quantity must be greater than zero", i+1), "items.quantity")
		}
	}
	return errs
}

// documentTotal recomputes the grand total the way the ledger does:
// each line rounded to cents before tax, VAT on every line with a tax
// reference, withholding deducted per tax.
func (s *Server) documentTotal(req ledger.DocumentRequest) (decimal.Decimal, []apiError) {
	hundred := decimal.NewFromInt(100)
	gross := decimal.Zero
	withheldBase := make(map[int64]decimal.Decimal)

	for i, it := range req.Items {
		qty, err := decimal.NewFromString(it.Quantity.String())
		if err != nil {
			return decimal.Zero, []apiError{{Code: "invalid_quantity", Message: fmt.Sprintf("Item %d: quantity", i+1), Params: []string{"items.quantity"}}}
		}

		// Any tax reference makes the line taxable.
		taxed := len(it.Taxes) > 0
		vatRate := decimal.Zero
		if taxed {
			vatRate = s.defaultVAT
			for _, t := range it.Taxes {
				if r, ok := s.vat[t.ID]; ok {
					vatRate = r
				}
			}
		}

		var unit decimal.Decimal
		if it.Price != "" {
			unit, err = decimal.NewFromString(it.Price.String())
		} else {
			var tp decimal.Decimal
			tp, err = decimal.NewFromString(it.TaxedPrice.String())
			unit = tp.Div(decimal.NewFromInt(1).Add(vatRate.Div(hundred)))
		}
		if err != nil {
			return decimal.Zero, []apiError{{Code: "invalid_price", Message: fmt.Sprintf("Item %d: price", i+1), Params: []string{"items.price"}}}
		}

		pct := decimal.Zero
		if it.Discount != "" {
			if pct, err = decimal.NewFromString(it.Discount.String()); err != nil {
				return decimal.Zero, []apiError{{Code: "invalid_discount", Message: fmt.Sprintf("Item %d: discount", i+1), Params: []string{"items.discount"}}}
			}
		}

		base := unit.Mul(qty).Round(2)
		after := base.Sub(base.Mul(pct).Div(hundred).Round(2))
		tax := decimal.Zero
		if taxed {
			tax = after.Mul(vatRate).Div(hundred).Round(2)
		}
		gross = gross.Add(after).Add(tax)

		for _, t := range it.Taxes {
			if _, ok := s.withholdings[t.ID]; ok {
				withheldBase[t.ID] = withheldBase[t.ID].Add(after)
			}
		}
	}

	withheld := decimal.Zero
	for id, base := range withheldBase {
		withheld = withheld.Add(base.Mul(s.withholdings[id]).Div(hundred).Round(2))
	}
	return gross.Sub(withheld).Round(2), nil
}

func documentView(d StoredDocument) gin.H {
	return gin.H{
		"id":           d.ID,
		"number":       d.Number,
		"name":         d.Name,
		"date":         d.Date,
		"total":        d.Total,
		"customer":     gin.H{"identification": d.Request.Customer.Identification},
		"observations": d.Request.Observations,
		"metadata":     gin.H{"created": d.CreatedAt.Format(time.RFC3339)},
	}
}

func errorBody(status int, code, msg string, params ...string) gin.H {
	return gin.H{
		"Errors": []apiError{{Code: code, Message: msg, Params: params}},
		"Status": status,
	}
}

func decimalPlaces(n json.Number) int {
	s := n.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(strings.TrimRight(s[i+1:], "0"))
}
