// Package ledger is the HTTP client for the external ledger (Siigo-style) API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	appctx "github.com/jecaicedo27/toppingfrozen-sub005/internal/core/context"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// maxBodyBytes bounds how much of a response is read into memory.
const maxBodyBytes = 4 << 20

// HeaderRequestID forwards the caller's request id so ledger-side logs
// can be correlated.
const HeaderRequestID = "X-Request-ID"

// TokenSource supplies the bearer token for each request.
// Obtaining and refreshing it is the caller's concern.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", apperror.NewAuth("ledger token not configured")
	}
	return string(s), nil
}

// Config holds client connection settings.
type Config struct {
	BaseURL   string
	PartnerID string
	Timeout   time.Duration
}

// Client talks to the ledger API. Every call goes through the Executor.
type Client struct {
	baseURL   string
	partnerID string
	http      *http.Client
	tokens    TokenSource
	exec      *Executor
	log       *logger.Logger
}

// NewClient creates a client. A nil executor gets default retry settings.
func NewClient(cfg Config, tokens TokenSource, exec *Executor, log *logger.Logger) *Client {
	log = log.OrDefault()
	if exec == nil {
		exec = NewExecutor(DefaultExecutorConfig(), log)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   NormalizeBaseURL(cfg.BaseURL),
		partnerID: cfg.PartnerID,
		http:      &http.Client{Timeout: timeout},
		tokens:    tokens,
		exec:      exec,
		log:       log.WithComponent("ledger.client"),
	}
}

// NormalizeBaseURL strips trailing slashes and a trailing /v1 so paths can
// always be joined as /v1/...
func NormalizeBaseURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/v1")
	return strings.TrimRight(u, "/")
}

// LookupProduct fetches one product by exact code. Implements catalog.Lookup.
func (c *Client) LookupProduct(ctx context.Context, code string) (catalog.ProductReference, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("page", "1")
	q.Set("page_size", "1")

	var page productPage
	if err := c.do(ctx, "lookup_product", http.MethodGet, "/v1/products", q, nil, &page, nil); err != nil {
		if se, ok := AsStatusError(err); ok && se.StatusCode == http.StatusNotFound {
			return catalog.ProductReference{}, apperror.NewNotFound("product", code).WithCause(err)
		}
		return catalog.ProductReference{}, err
	}
	if len(page.Results) == 0 {
		return catalog.ProductReference{}, apperror.NewNotFound("product", code)
	}

	ref := page.Results[0].toReference()
	if ref.Code == "" {
		ref.Code = catalog.NormalizeCode(code)
	}
	return ref, nil
}

// CreateInvoice posts an invoice.
func (c *Client) CreateInvoice(ctx context.Context, req DocumentRequest) (CreatedDocument, error) {
	return c.create(ctx, "create_invoice", "/v1/invoices", req)
}

// CreateQuotation posts a quotation.
func (c *Client) CreateQuotation(ctx context.Context, req DocumentRequest) (CreatedDocument, error) {
	return c.create(ctx, "create_quotation", "/v1/quotations", req)
}

func (c *Client) create(ctx context.Context, op, path string, req DocumentRequest) (CreatedDocument, error) {
	var out CreatedDocument
	var raw []byte
	if err := c.do(ctx, op, http.MethodPost, path, nil, req, &out, &raw); err != nil {
		return CreatedDocument{}, err
	}
	out.Raw = raw

	c.log.WithContext(ctx).Infow("ledger document created",
		"operation", op,
		"id", out.ID,
		"number", out.Number,
		"name", out.Name)
	return out, nil
}

// ListInvoices lists invoices matching f.
func (c *Client) ListInvoices(ctx context.Context, f ListFilter) (DocumentPage, error) {
	var page DocumentPage
	err := c.do(ctx, "list_invoices", http.MethodGet, "/v1/invoices", f.values(), nil, &page, nil)
	return page, err
}

// ListQuotations lists quotations matching f.
func (c *Client) ListQuotations(ctx context.Context, f ListFilter) (DocumentPage, error) {
	var page DocumentPage
	err := c.do(ctx, "list_quotations", http.MethodGet, "/v1/quotations", f.values(), nil, &page, nil)
	return page, err
}

// GetInvoice fetches one invoice by its ledger id.
func (c *Client) GetInvoice(ctx context.Context, id string) (RemoteDocument, error) {
	var doc RemoteDocument
	err := c.do(ctx, "get_invoice", http.MethodGet, "/v1/invoices/"+url.PathEscape(id), nil, nil, &doc, nil)
	return doc, err
}

// do performs one logical call. The body is encoded once and replayed on
// every attempt. When raw is non-nil it receives the response body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, raw *[]byte) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("%s: encode request: %w", op, err))
		}
		payload = b
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return c.exec.Do(ctx, op, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return apperror.NewInternal(fmt.Errorf("%s: build request: %w", op, err))
		}

		token, err := c.tokens.Token(ctx)
		if err != nil {
			if apperror.IsAppError(err) {
				return err
			}
			return apperror.NewAuth("obtain ledger token").WithCause(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.partnerID != "" {
			req.Header.Set("Partner-Id", c.partnerID)
		}
		if id := appctx.GetRequestID(ctx); id != "" {
			req.Header.Set(HeaderRequestID, id)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return fmt.Errorf("%s: read response: %w", op, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Header:     resp.Header.Clone(),
				Body:       data,
			}
		}

		if raw != nil {
			*raw = data
		}
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("%s: decode response: %w", op, err)
			}
		}
		return nil
	})
}
