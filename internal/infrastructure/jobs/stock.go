// Package jobs hands post-submission work to background workers over asynq.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/billing"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

const (
	// QueueStock is the queue stock tasks are enqueued on.
	QueueStock = "stock"
	// TaskTypeStockDecrement asks the inventory worker to discount invoiced items.
	TaskTypeStockDecrement = "stock:decrement"
)

// StockLine is one product quantity to discount.
type StockLine struct {
	Code     string `json:"code"`
	Quantity string `json:"quantity"`
}

// StockDecrementPayload describes an accepted invoice's stock movement.
type StockDecrementPayload struct {
	RemoteID string      `json:"remote_id"`
	Name     string      `json:"name"`
	Date     string      `json:"date"`
	Customer string      `json:"customer"`
	Lines    []StockLine `json:"lines"`
}

// NewStockDecrementTask constructs an asynq task. The ledger document id
// doubles as the task id so a retried hook never enqueues twice.
func NewStockDecrementTask(payload StockDecrementPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueStock), asynq.MaxRetry(5)}
	if payload.RemoteID != "" {
		opts = append(opts, asynq.TaskID("stock:"+payload.RemoteID))
	}
	return asynq.NewTask(TaskTypeStockDecrement, data, opts...), nil
}

// ParseStockDecrement decodes a task for the worker side. Undecodable
// payloads are not retried.
func ParseStockDecrement(t *asynq.Task) (StockDecrementPayload, error) {
	var payload StockDecrementPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return StockDecrementPayload{}, fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StockHook enqueues a stock decrement after each accepted invoice.
// Quotations do not move stock.
type StockHook struct {
	queue Enqueuer
	log   *logger.Logger
}

// NewStockHook creates the hook.
func NewStockHook(queue Enqueuer, log *logger.Logger) *StockHook {
	return &StockHook{queue: queue, log: log.OrDefault().WithComponent("jobs.stock")}
}

// AfterSubmit implements billing.SubmissionHook.
func (h *StockHook) AfterSubmit(ctx context.Context, doc *billing.PreparedDocument, res *billing.SubmissionResult) error {
	if doc.Kind != pricing.Invoice {
		return nil
	}

	payload := StockDecrementPayload{
		RemoteID: res.RemoteID,
		Name:     res.Name,
		Date:     doc.Date,
		Customer: doc.Customer.Identification,
		Lines:    make([]StockLine, 0, len(doc.Lines)),
	}
	for _, l := range doc.Lines {
		payload.Lines = append(payload.Lines, StockLine{Code: l.Code, Quantity: l.Quantity.String()})
	}

	task, err := NewStockDecrementTask(payload)
	if err != nil {
		return fmt.Errorf("build stock task: %w", err)
	}
	info, err := h.queue.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue stock task for %s: %w", res.RemoteID, err)
	}

	h.log.WithContext(ctx).Infow("stock decrement enqueued",
		"task_id", info.ID,
		"remote_id", res.RemoteID,
		"lines", len(payload.Lines))
	return nil
}

var _ billing.SubmissionHook = (*StockHook)(nil)
