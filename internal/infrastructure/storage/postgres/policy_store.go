package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// Keys read from system_config.
const (
	KeyUseCatalogPrices    = "siigo_use_prices_from_siigo"
	KeyPricesIncludeTax    = "siigo_prices_include_tax"
	KeyTaxRate             = "siigo_iva_rate"
	KeyTaxID               = "siigo_tax_iva_id"
	KeyFallbackProductCode = "siigo_fallback_product_code"
	KeyAdditionalFields    = "siigo_enable_additional_fields"
)

var policyKeys = []string{
	KeyUseCatalogPrices,
	KeyPricesIncludeTax,
	KeyTaxRate,
	KeyTaxID,
	KeyFallbackProductCode,
	KeyAdditionalFields,
}

// configRow is one system_config entry.
type configRow struct {
	Key   string  `db:"config_key"`
	Value *string `db:"config_value"`
}

// PolicyStore reads the pricing policy from the system_config table,
// overlaying stored values on process defaults. Missing or unparsable
// values keep the default.
type PolicyStore struct {
	db       pgxscan.Querier
	defaults pricing.Policy
	log      *logger.Logger
}

// NewPolicyStore creates a store. db is usually a *pgxpool.Pool.
func NewPolicyStore(db pgxscan.Querier, defaults pricing.Policy, log *logger.Logger) *PolicyStore {
	return &PolicyStore{
		db:       db,
		defaults: defaults,
		log:      log.OrDefault().WithComponent("policy_store"),
	}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func policyQuery() (string, []any, error) {
	return builder().
		Select("config_key", "config_value").
		From("system_config").
		Where(squirrel.Eq{"config_key": policyKeys}).
		ToSql()
}

// Policy implements pricing.Source.
func (s *PolicyStore) Policy(ctx context.Context) (pricing.Policy, error) {
	sql, args, err := policyQuery()
	if err != nil {
		return pricing.Policy{}, fmt.Errorf("build policy query: %w", err)
	}

	var rows []configRow
	if err := pgxscan.Select(ctx, s.db, &rows, sql, args...); err != nil {
		return pricing.Policy{}, fmt.Errorf("load pricing policy: %w", err)
	}

	return applyConfig(ctx, s.defaults, rows, s.log), nil
}

// applyConfig overlays rows on base. It never fails; bad values are logged.
func applyConfig(ctx context.Context, base pricing.Policy, rows []configRow, log *logger.Logger) pricing.Policy {
	p := base
	p.BarcodePrefixes = append([]string(nil), base.BarcodePrefixes...)

	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		raw := strings.TrimSpace(*row.Value)
		bad := func() {
			log.WithContext(ctx).Warnw("ignoring unparsable config value", "key", row.Key, "value", raw)
		}

		switch row.Key {
		case KeyUseCatalogPrices:
			p.UseCatalogPrices = parseFlag(raw)
		case KeyPricesIncludeTax:
			p.PricesIncludeTax = parseFlag(raw)
		case KeyAdditionalFields:
			p.AdditionalFields = parseFlag(raw)
		case KeyTaxRate:
			rate, err := decimal.NewFromString(raw)
			if err != nil || !rate.IsPositive() {
				bad()
				continue
			}
			p.DefaultTaxRate = rate
		case KeyTaxID:
			if raw == "" {
				continue
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				bad()
				continue
			}
			p.DefaultTaxID = id
		case KeyFallbackProductCode:
			p.FallbackProductCode = raw
		}
	}
	return p
}

// parseFlag accepts the boolean spellings the config table has accumulated.
func parseFlag(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1":
		return true
	default:
		return false
	}
}

var _ pricing.Source = (*PolicyStore)(nil)
