package billing

import (
	"context"
	"encoding/json"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/apperror"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/core/types"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

var tracer = otel.Tracer("toppingfrozen/billing")

// LedgerAPI is the part of the ledger client billing depends on.
type LedgerAPI interface {
	CreateInvoice(ctx context.Context, req ledger.DocumentRequest) (ledger.CreatedDocument, error)
	CreateQuotation(ctx context.Context, req ledger.DocumentRequest) (ledger.CreatedDocument, error)
	ListInvoices(ctx context.Context, f ledger.ListFilter) (ledger.DocumentPage, error)
	ListQuotations(ctx context.Context, f ledger.ListFilter) (ledger.DocumentPage, error)
}

// SubmissionResult identifies the document the ledger created.
type SubmissionResult struct {
	RemoteID string          `json:"remote_id"`
	Number   string          `json:"number"`
	Name     string          `json:"name"`
	Total    types.Money     `json:"total"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// SubmissionHook runs after the ledger accepted a document, e.g. to book
// stock movements. Hook errors are logged and never fail the submission.
type SubmissionHook interface {
	AfterSubmit(ctx context.Context, doc *PreparedDocument, res *SubmissionResult) error
}

// SubmissionHookFunc adapts a function to SubmissionHook.
type SubmissionHookFunc func(ctx context.Context, doc *PreparedDocument, res *SubmissionResult) error

// AfterSubmit implements SubmissionHook.
func (f SubmissionHookFunc) AfterSubmit(ctx context.Context, doc *PreparedDocument, res *SubmissionResult) error {
	return f(ctx, doc, res)
}

// Submitter sends prepared documents and classifies failures.
type Submitter struct {
	api   LedgerAPI
	hooks []SubmissionHook
	log   *logger.Logger
}

// NewSubmitter creates a submitter.
func NewSubmitter(api LedgerAPI, log *logger.Logger, hooks ...SubmissionHook) *Submitter {
	return &Submitter{
		api:   api,
		hooks: hooks,
		log:   log.OrDefault().WithComponent("billing.submitter"),
	}
}

// Submit creates doc in the ledger. Every error is an AppError with a stage.
func (s *Submitter) Submit(ctx context.Context, doc *PreparedDocument) (*SubmissionResult, error) {
	if doc == nil || doc.Kind.IsZero() {
		return nil, notSent(apperror.NewValidation("prepared document is required"))
	}

	ctx, span := tracer.Start(ctx, "billing.submit", trace.WithAttributes(
		attribute.String("document.kind", doc.Kind.String()),
		attribute.Int("document.lines", len(doc.Lines)),
		attribute.String("document.payment_value", doc.Payment.Value.StringFixed(2)),
	))
	defer span.End()

	req := BuildRequest(doc)

	var (
		created ledger.CreatedDocument
		err     error
	)
	if doc.Kind == pricing.Quotation {
		created, err = s.api.CreateQuotation(ctx, req)
	} else {
		created, err = s.api.CreateInvoice(ctx, req)
	}
	if err != nil {
		classified := Classify(err)
		span.RecordError(classified)
		span.SetStatus(codes.Error, classified.Code)
		s.log.WithContext(ctx).Warnw("ledger submission failed",
			"kind", doc.Kind.String(),
			"code", classified.Code,
			"stage", StageOf(classified),
			"error", err)
		return nil, classified
	}

	res := &SubmissionResult{
		RemoteID: created.ID,
		Number:   remoteNumber(created),
		Name:     created.Name,
		Total:    created.Total,
		Raw:      created.Raw,
	}
	span.SetAttributes(attribute.String("ledger.document_id", res.RemoteID))

	s.log.WithContext(ctx).Infow("document submitted",
		"kind", doc.Kind.String(),
		"remote_id", res.RemoteID,
		"number", res.Number)

	for _, h := range s.hooks {
		if err := h.AfterSubmit(ctx, doc, res); err != nil {
			s.log.WithContext(ctx).Errorw("submission hook failed",
				"remote_id", res.RemoteID,
				"error", err)
		}
	}
	return res, nil
}

func remoteNumber(c ledger.CreatedDocument) string {
	switch {
	case c.Number != 0:
		return strconv.FormatInt(c.Number, 10)
	case c.Name != "":
		return c.Name
	default:
		return c.ID
	}
}
