package billing

import (
	"context"
	"strings"
	"time"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	appctx "github.com/jecaicedo27/toppingfrozen-sub005/internal/core/context"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

const (
	reconcilePageSize = 100
	reconcileMaxPages = 10
)

// Service is the caller-facing entry point. It hides catalog resolution
// and retry mechanics.
type Service struct {
	assembler *Assembler
	submitter *Submitter
	api       LedgerAPI
	log       *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for document and due dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.assembler.now = now
		}
	}
}

// WithHooks registers hooks run after each successful submission.
func WithHooks(hooks ...SubmissionHook) Option {
	return func(s *Service) {
		s.submitter.hooks = append(s.submitter.hooks, hooks...)
	}
}

// NewService wires the pipeline. A nil resolver disables catalog lookups.
func NewService(
	cfg Config,
	policies pricing.Source,
	resolver *catalog.Resolver,
	api LedgerAPI,
	log *logger.Logger,
	opts ...Option,
) *Service {
	log = log.OrDefault()
	s := &Service{
		assembler: NewAssembler(cfg, policies, NewFormatter(resolver, log), log),
		submitter: NewSubmitter(api, log),
		api:       api,
		log:       log.WithComponent("billing.service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PrepareInvoice builds an invoice: 6-decimal or tax-inclusive prices and
// a payments block.
func (s *Service) PrepareInvoice(ctx context.Context, req PrepareRequest) (*PreparedDocument, error) {
	return s.assembler.Prepare(appctx.EnsureTrace(ctx), pricing.Invoice, req)
}

// PrepareQuotation builds a quotation: 2-decimal base prices only.
func (s *Service) PrepareQuotation(ctx context.Context, req PrepareRequest) (*PreparedDocument, error) {
	return s.assembler.Prepare(appctx.EnsureTrace(ctx), pricing.Quotation, req)
}

// CreateInvoice submits a prepared invoice.
func (s *Service) CreateInvoice(ctx context.Context, doc *PreparedDocument) (*SubmissionResult, error) {
	return s.create(ctx, pricing.Invoice, doc)
}

// CreateQuotation submits a prepared quotation.
func (s *Service) CreateQuotation(ctx context.Context, doc *PreparedDocument) (*SubmissionResult, error) {
	return s.create(ctx, pricing.Quotation, doc)
}

func (s *Service) create(ctx context.Context, kind pricing.DocumentKind, doc *PreparedDocument) (*SubmissionResult, error) {
	if doc != nil && doc.Kind != kind {
		return nil, notSent(apperror.NewValidation("document was prepared as " + doc.Kind.String() + ", not " + kind.String()))
	}
	return s.submitter.Submit(appctx.EnsureTrace(ctx), doc)
}

// FindSubmitted looks for doc among the ledger documents created on its
// date, matching customer identification and total. Use it after an error
// with StageUncertain before resubmitting. Returns NOT_FOUND when absent.
func (s *Service) FindSubmitted(ctx context.Context, doc *PreparedDocument) (*ledger.RemoteDocument, error) {
	if doc == nil || doc.Kind.IsZero() {
		return nil, apperror.NewValidation("prepared document is required")
	}
	ctx = appctx.EnsureTrace(ctx)

	list := s.api.ListInvoices
	if doc.Kind == pricing.Quotation {
		list = s.api.ListQuotations
	}

	for page := 1; page <= reconcileMaxPages; page++ {
		res, err := list(ctx, ledger.ListFilter{
			CreatedStart: doc.Date,
			CreatedEnd:   doc.Date,
			Page:         page,
			PageSize:     reconcilePageSize,
		})
		if err != nil {
			return nil, err
		}

		for i := range res.Results {
			remote := res.Results[i]
			if strings.EqualFold(strings.TrimSpace(remote.Customer.Identification), doc.Customer.Identification) &&
				remote.Total.Equal(doc.Payment.Value) {
				s.log.WithContext(ctx).Infow("submitted document found in ledger",
					"kind", doc.Kind.String(),
					"remote_id", remote.ID,
					"name", remote.Name)
				return &remote, nil
			}
		}

		if len(res.Results) < reconcilePageSize {
			break
		}
		// total_results is optional; 0 means unknown.
		if total := res.Pagination.TotalResults; total > 0 && page*reconcilePageSize >= total {
			break
		}
	}
	return nil, apperror.NewNotFound(doc.Kind.String(), doc.Customer.Identification)
}
