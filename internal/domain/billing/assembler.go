package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

const (
	maxObservationsLen = 500
	maxSummaryLen      = 60
)

var hundred = decimal.NewFromInt(100)

// PrepareRequest is everything the caller supplies for one document.
type PrepareRequest struct {
	Customer Customer    `json:"customer"`
	Items    []OrderLine `json:"items"`
	Notes    string      `json:"notes"`
	// OriginalRequest is the caller's raw order text, summarized into the
	// delivery-order field when additional fields are enabled.
	OriginalRequest string          `json:"original_request"`
	Options         DocumentOptions `json:"options"`
}

// Assembler validates requests and builds prepared documents.
type Assembler struct {
	cfg       Config
	policies  pricing.Source
	formatter *Formatter
	validate  *validator.Validate
	now       func() time.Time
	log       *logger.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(cfg Config, policies pricing.Source, formatter *Formatter, log *logger.Logger) *Assembler {
	return &Assembler{
		cfg:       cfg.withDefaults(),
		policies:  policies,
		formatter: formatter,
		validate:  validator.New(),
		now:       time.Now,
		log:       log.OrDefault().WithComponent("billing.assembler"),
	}
}

// Prepare builds a document of the given kind. Every validation problem is
// reported at once as VALIDATION_ERROR with details.errors; nothing is sent.
func (a *Assembler) Prepare(ctx context.Context, kind pricing.DocumentKind, req PrepareRequest) (*PreparedDocument, error) {
	if kind.IsZero() {
		return nil, notSent(apperror.NewValidation("document kind is required"))
	}

	policy, err := a.policies.Policy(ctx)
	if err != nil {
		return nil, notSentErr(fmt.Errorf("load pricing policy: %w", err))
	}
	if err := policy.Validate(); err != nil {
		return nil, notSentErr(err)
	}

	if problems := a.checkRequest(req, policy); len(problems) > 0 {
		return nil, notSent(apperror.NewValidationList(problems))
	}

	lines, err := a.formatLines(ctx, kind, req, policy)
	if err != nil {
		return nil, err
	}

	now := a.now()
	dueDays := a.cfg.DueDays
	if req.Options.DueDays != nil {
		dueDays = *req.Options.DueDays
	}

	docTypeID := req.Options.DocumentTypeID
	if docTypeID == 0 {
		docTypeID = a.cfg.documentTypeID(kind)
	}
	sellerID := req.Options.SellerID
	if sellerID == 0 {
		sellerID = a.cfg.SellerID
	}

	if id := req.Options.PaymentMethodID; id != 0 && id != a.cfg.CreditPaymentMethodID {
		a.log.WithContext(ctx).Infow("payment method replaced by credit method",
			"requested", id,
			"applied", a.cfg.CreditPaymentMethodID)
	}

	breakdown := ComputePayment(lines, policy.DefaultTaxRate, Withholding{
		TaxID: policy.WithholdingTaxID,
		Rate:  policy.WithholdingRate,
	})

	doc := &PreparedDocument{
		Kind:           kind,
		DocumentTypeID: docTypeID,
		Date:           now.Format(time.DateOnly),
		Customer: Customer{
			Identification: strings.TrimSpace(req.Customer.Identification),
			BranchOffice:   req.Customer.BranchOffice,
		},
		SellerID:     sellerID,
		Observations: truncate(strings.TrimSpace(req.Notes), maxObservationsLen),
		Lines:        lines,
		Payment: PaymentBlock{
			MethodID: a.cfg.CreditPaymentMethodID,
			Value:    breakdown.Value,
			DueDate:  now.AddDate(0, 0, dueDays).Format(time.DateOnly),
		},
		Breakdown: breakdown,
		Totals:    ComputeTotals(lines, policy.DefaultTaxRate),
		TaxRate:   policy.DefaultTaxRate,
	}
	if policy.AdditionalFields {
		doc.AdditionalFields = additionalFields(req)
	}

	a.log.WithContext(ctx).Infow("document prepared",
		"kind", kind.String(),
		"lines", len(lines),
		"payment_value", doc.Payment.Value.StringFixed(2))
	return doc, nil
}

// checkRequest collects every precondition failure.
func (a *Assembler) checkRequest(req PrepareRequest, policy pricing.Policy) []string {
	var problems []string

	if strings.TrimSpace(req.Customer.Identification) == "" {
		problems = append(problems, "customer identification is required")
	}
	if len(req.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}

	problems = append(problems, a.structProblems("customer", req.Customer)...)
	problems = append(problems, a.structProblems("options", req.Options)...)
	if p := req.Options.DiscountPercent; p != nil && !validPercent(*p) {
		problems = append(problems, "options: discount must be between 0 and 100")
	}

	for i, it := range req.Items {
		n := i + 1
		if !hasCandidate(it.Candidates) && strings.TrimSpace(it.Name) == "" {
			problems = append(problems, fmt.Sprintf("item %d: a product code or name is required", n))
		}
		if !it.Quantity.IsPositive() {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be greater than zero", n))
		}
		if it.UnitPrice == nil && !policy.UseCatalogPrices {
			problems = append(problems, fmt.Sprintf("item %d: unit price is required", n))
		}
		if it.UnitPrice != nil && it.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("item %d: unit price must not be negative", n))
		}
		if it.DiscountPercent != nil && !validPercent(*it.DiscountPercent) {
			problems = append(problems, fmt.Sprintf("item %d: discount must be between 0 and 100", n))
		}
	}
	return problems
}

func (a *Assembler) structProblems(prefix string, v any) []string {
	err := a.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{fmt.Sprintf("%s: %v", prefix, err)}
	}
	out := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, fmt.Sprintf("%s.%s: must satisfy %s", prefix, fe.Field(), rule))
	}
	return out
}

// formatLines formats all lines with bounded concurrency, keeping order.
// Line-level validation problems are aggregated; other errors abort.
func (a *Assembler) formatLines(ctx context.Context, kind pricing.DocumentKind, req PrepareRequest, policy pricing.Policy) ([]FormattedLine, error) {
	lines := make([]FormattedLine, len(req.Items))
	problems := make([][]string, len(req.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.LineConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			line, err := a.formatter.Format(gctx, i, item, policy, kind, req.Options)
			if err != nil {
				if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeValidation {
					problems[i] = validationMessages(appErr)
					return nil
				}
				return fmt.Errorf("format item %d: %w", i+1, err)
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, notSent(apperror.NewInternal(err))
	}

	var all []string
	for _, p := range problems {
		all = append(all, p...)
	}
	if len(all) > 0 {
		return nil, notSent(apperror.NewValidationList(all))
	}
	return lines, nil
}

// additionalFields builds the purchase and delivery order summaries.
func additionalFields(req PrepareRequest) *AdditionalFields {
	var parts []string
	if v := strings.TrimSpace(req.Options.PaymentMethodName); v != "" {
		parts = append(parts, "Medio: "+v)
	}
	if v := strings.TrimSpace(req.Options.ShippingPaymentMethod); v != "" {
		parts = append(parts, "Envío: "+v)
	}
	if v := strings.TrimSpace(req.Notes); v != "" {
		parts = append(parts, "Notas: "+v)
	}

	fields := &AdditionalFields{
		PurchaseOrder: truncate(strings.Join(parts, " | "), maxSummaryLen),
		DeliveryOrder: truncate(strings.Join(strings.Fields(req.OriginalRequest), " "), maxSummaryLen),
	}
	if fields.PurchaseOrder == "" && fields.DeliveryOrder == "" {
		return nil
	}
	return fields
}

func validationMessages(e *apperror.AppError) []string {
	if list, ok := e.Detail("errors").([]string); ok && len(list) > 0 {
		return list
	}
	return []string{e.Message}
}

func validPercent(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}

func hasCandidate(codes []string) bool {
	for _, c := range codes {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}
