// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/billing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// Config holds runtime configuration.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	LedgerBaseURL     string        `envconfig:"LEDGER_BASE_URL" default:"https://api.siigo.com"`
	LedgerToken       string        `envconfig:"LEDGER_TOKEN"`
	LedgerPartnerID   string        `envconfig:"LEDGER_PARTNER_ID"`
	LedgerTimeout     time.Duration `envconfig:"LEDGER_TIMEOUT" default:"30s"`
	LedgerMaxRetries  int           `envconfig:"LEDGER_MAX_RETRIES" default:"5"`
	LedgerBackoffBase time.Duration `envconfig:"LEDGER_BACKOFF_BASE" default:"1s"`
	LedgerBackoffMax  time.Duration `envconfig:"LEDGER_BACKOFF_MAX" default:"10s"`
	LedgerMinInterval time.Duration `envconfig:"LEDGER_MIN_INTERVAL" default:"300ms"`

	InvoiceDocumentID     int64 `envconfig:"INVOICE_DOCUMENT_ID" default:"15047"`
	QuotationDocumentID   int64 `envconfig:"QUOTATION_DOCUMENT_ID" default:"15048"`
	SellerID              int64 `envconfig:"SELLER_ID" default:"388"`
	DueDays               int   `envconfig:"DUE_DAYS" default:"30"`
	CreditPaymentMethodID int64 `envconfig:"CREDIT_PAYMENT_METHOD_ID" default:"3467"`
	LineConcurrency       int   `envconfig:"LINE_CONCURRENCY" default:"4"`

	UseCatalogPrices    bool   `envconfig:"USE_CATALOG_PRICES" default:"true"`
	PricesIncludeTax    bool   `envconfig:"PRICES_INCLUDE_TAX" default:"false"`
	DefaultTaxRate      string `envconfig:"DEFAULT_TAX_RATE" default:"19"`
	DefaultTaxID        int64  `envconfig:"DEFAULT_TAX_ID" default:"8095"`
	WithholdingTaxID    int64  `envconfig:"WITHHOLDING_TAX_ID" default:"8101"`
	WithholdingRate     string `envconfig:"WITHHOLDING_RATE" default:"2.5"`
	FallbackProductCode string `envconfig:"FALLBACK_PRODUCT_CODE"`
	AdditionalFields    bool   `envconfig:"ADDITIONAL_FIELDS" default:"false"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	ProductCacheTTL time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"0"`
	// StockQueue enqueues a stock decrement task after each accepted invoice.
	StockQueue bool `envconfig:"STOCK_QUEUE" default:"false"`

	PGDSN string `envconfig:"PG_DSN"`

	taxRate         decimal.Decimal
	withholdingRate decimal.Decimal
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if strings.TrimSpace(c.LedgerBaseURL) == "" {
		errs = append(errs, errors.New("LEDGER_BASE_URL must be provided"))
	}
	if c.LedgerMaxRetries < 0 {
		errs = append(errs, errors.New("LEDGER_MAX_RETRIES must not be negative"))
	}
	if c.LedgerBackoffBase <= 0 || c.LedgerBackoffMax < c.LedgerBackoffBase {
		errs = append(errs, errors.New("LEDGER_BACKOFF_BASE must be positive and not above LEDGER_BACKOFF_MAX"))
	}
	if c.LedgerMinInterval < 0 {
		errs = append(errs, errors.New("LEDGER_MIN_INTERVAL must not be negative"))
	}
	if c.DueDays < 0 || c.DueDays > 365 {
		errs = append(errs, errors.New("DUE_DAYS must be between 0 and 365"))
	}
	if c.StockQueue && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, errors.New("STOCK_QUEUE requires REDIS_ADDR"))
	}
	if c.LineConcurrency < 1 {
		errs = append(errs, errors.New("LINE_CONCURRENCY must be at least 1"))
	}

	var err error
	if c.taxRate, err = parseRate("DEFAULT_TAX_RATE", c.DefaultTaxRate); err != nil {
		errs = append(errs, err)
	}
	if c.withholdingRate, err = parseRate("WITHHOLDING_RATE", c.WithholdingRate); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func parseRate(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", name, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%s must be between 0 and 100", name)
	}
	return d, nil
}

// IsProduction returns true when the process runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Logger returns the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.LogLevel, Development: !c.IsProduction()}
}

// Executor returns the retry and pacing settings for ledger calls.
func (c *Config) Executor() ledger.ExecutorConfig {
	return ledger.ExecutorConfig{
		MaxRetries:  c.LedgerMaxRetries,
		BaseDelay:   c.LedgerBackoffBase,
		MaxDelay:    c.LedgerBackoffMax,
		MinInterval: c.LedgerMinInterval,
	}
}

// Ledger returns the HTTP client settings.
func (c *Config) Ledger() ledger.Config {
	return ledger.Config{
		BaseURL:   c.LedgerBaseURL,
		PartnerID: c.LedgerPartnerID,
		Timeout:   c.LedgerTimeout,
	}
}

// Billing returns the document defaults.
func (c *Config) Billing() billing.Config {
	return billing.Config{
		InvoiceDocumentID:     c.InvoiceDocumentID,
		QuotationDocumentID:   c.QuotationDocumentID,
		SellerID:              c.SellerID,
		DueDays:               c.DueDays,
		CreditPaymentMethodID: c.CreditPaymentMethodID,
		LineConcurrency:       c.LineConcurrency,
	}
}

// Policy returns the process default pricing policy. Stored config, when a
// database is configured, overlays it.
func (c *Config) Policy() pricing.Policy {
	p := pricing.DefaultPolicy()
	p.UseCatalogPrices = c.UseCatalogPrices
	p.PricesIncludeTax = c.PricesIncludeTax
	p.DefaultTaxRate = c.taxRate
	p.DefaultTaxID = c.DefaultTaxID
	p.WithholdingTaxID = c.WithholdingTaxID
	p.WithholdingRate = c.withholdingRate
	p.FallbackProductCode = c.FallbackProductCode
	p.AdditionalFields = c.AdditionalFields
	return p
}
