package billing

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/types"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

const (
	maxDescriptionLen  = 100
	temporaryCodeChars = 10
)

// Formatter turns order lines into ledger document lines.
type Formatter struct {
	resolver *catalog.Resolver
	log      *logger.Logger
}

// NewFormatter creates a formatter. A nil resolver disables catalog lookups.
func NewFormatter(resolver *catalog.Resolver, log *logger.Logger) *Formatter {
	return &Formatter{
		resolver: resolver,
		log:      log.OrDefault().WithComponent("billing.formatter"),
	}
}

// Format builds the document line for line at position index (0-based).
// Problems with the caller's data come back as VALIDATION_ERROR; catalog
// misses degrade to caller data and never fail the line.
func (f *Formatter) Format(
	ctx context.Context,
	index int,
	line OrderLine,
	policy pricing.Policy,
	kind pricing.DocumentKind,
	opts DocumentOptions,
) (FormattedLine, error) {
	candidates := catalog.PreferCandidates(line.Candidates, policy.BarcodePrefixes)
	exempt := line.IsExempt()

	var (
		ref    *catalog.ProductReference
		code   string
		source LineSource
	)

	if policy.UseCatalogPrices && f.resolver != nil {
		res, err := f.resolver.Resolve(ctx, candidates, policy.FallbackProductCode)
		switch {
		case err == nil:
			product := res.Product
			ref = &product
			code = res.Code
			source = SourceCatalog
			if res.Fallback {
				source = SourceFallback
			}
		case apperror.IsNotFound(err):
			f.log.WithContext(ctx).Debugw("line not in catalog, using caller data",
				"line", index+1,
				"candidates", candidates)
		default:
			return FormattedLine{}, err
		}
	}

	if code == "" {
		switch {
		case len(candidates) > 0:
			code, source = candidates[0], SourceCaller
		case !policy.UseCatalogPrices && policy.NormalizedFallback() != "":
			code, source = policy.NormalizedFallback(), SourceFallback
		default:
			code, source = TemporaryCode(line.Name, index), SourceTemporary
			f.log.WithContext(ctx).Warnw("line has no usable product code, synthesized a temporary one",
				"line", index+1,
				"name", line.Name,
				"code", code)
		}
	}

	taxes := lineTaxes(line, ref, policy, exempt)
	if opts.ApplyWithholding && !exempt && policy.WithholdingTaxID != 0 && !catalog.HasTax(taxes, policy.WithholdingTaxID) {
		taxes = append(taxes, catalog.TaxRef{ID: policy.WithholdingTaxID})
	}
	taxed := len(taxes) > 0

	input, err := inputPrice(index, line, ref)
	if err != nil {
		return FormattedLine{}, err
	}

	out := FormattedLine{
		Code:        code,
		Quantity:    line.Quantity,
		Description: description(line, ref, code),
		Taxes:       taxes,
		Discount:    lineDiscount(line, opts),
		Source:      source,
	}

	inclusive := policy.PricesIncludeTax && taxed
	if inclusive && kind.AllowsTaxedPrice() {
		out.TaxedPrice = types.Ptr(types.RoundCurrency(input))
	} else {
		base := input
		if inclusive {
			base = types.StripTax(input, policy.DefaultTaxRate)
		}
		out.Price = types.Ptr(base.Round(kind.PricePlaces()))
	}
	return out, nil
}

// lineTaxes picks the line's tax references. Catalog taxes win; otherwise
// the caller's explicit tax, else the default tax. An untaxed line is more
// likely a lookup miss than a real exemption, so the default applies unless
// the caller marked the line exempt.
func lineTaxes(line OrderLine, ref *catalog.ProductReference, policy pricing.Policy, exempt bool) []catalog.TaxRef {
	// Any tax reference makes the ledger charge VAT, so exempt lines carry none.
	if exempt {
		return nil
	}
	switch {
	case ref != nil && len(ref.Taxes) > 0:
		return append([]catalog.TaxRef(nil), ref.Taxes...)
	case line.TaxID != nil && *line.TaxID != 0:
		return []catalog.TaxRef{{ID: *line.TaxID}}
	case policy.DefaultTaxID != 0:
		return []catalog.TaxRef{{ID: policy.DefaultTaxID}}
	}
	return nil
}

// inputPrice is the catalog price on a priced hit, else the caller's price.
func inputPrice(index int, line OrderLine, ref *catalog.ProductReference) (types.Money, error) {
	if ref != nil && ref.HasPrice() {
		return ref.BasePrice, nil
	}
	if line.UnitPrice != nil {
		if line.UnitPrice.IsNegative() {
			return types.Zero(), apperror.NewValidationList([]string{
				fmt.Sprintf("item %d: unit price must not be negative", index+1),
			})
		}
		return *line.UnitPrice, nil
	}
	return types.Zero(), apperror.NewValidationList([]string{
		fmt.Sprintf("item %d: no price available from catalog or caller", index+1),
	})
}

func lineDiscount(line OrderLine, opts DocumentOptions) *types.Money {
	pct := opts.DiscountPercent
	if line.DiscountPercent != nil {
		pct = line.DiscountPercent
	}
	if pct == nil || !pct.IsPositive() {
		return nil
	}
	return types.Ptr(*pct)
}

func description(line OrderLine, ref *catalog.ProductReference, code string) string {
	desc := strings.TrimSpace(line.Name)
	if ref != nil && strings.TrimSpace(ref.Name) != "" {
		desc = strings.TrimSpace(ref.Name)
	}
	if desc == "" {
		desc = code
	}
	return truncate(desc, maxDescriptionLen)
}

// TemporaryCode derives a deterministic placeholder code from a product name:
// accents folded, non-alphanumerics dropped, first 10 characters uppercased,
// then the 1-based line number as two digits. Such codes are unlikely to
// exist in the ledger and need manual cleanup after submission.
func TemporaryCode(name string, index int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Producto %d", index+1)
	}

	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range folded {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() == temporaryCodeChars {
				break
			}
		}
	}
	prefix := b.String()
	if prefix == "" {
		prefix = "PRODUCTO"
	}
	return fmt.Sprintf("%s%02d", prefix, index+1)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
