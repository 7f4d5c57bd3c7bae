// Package context carries correlation ids for one document through
// preparation, submission and every ledger request made on its behalf.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext correlates the log lines of one document.
type TraceContext struct {
	TraceID   string
	RequestID string
	// Document is the caller's label for the document being built (optional).
	Document string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// EnsureTrace returns ctx unchanged when it already carries a trace,
// otherwise a child context with a freshly generated one.
func EnsureTrace(ctx context.Context) context.Context {
	if GetTrace(ctx) != nil {
		return ctx
	}
	return WithTrace(ctx, NewTraceContext())
}

// WithDocument labels the document being processed, keeping any ids
// already in ctx. The stored trace is copied, never mutated.
func WithDocument(ctx context.Context, label string) context.Context {
	tc := NewTraceContext()
	if cur := GetTrace(ctx); cur != nil {
		copied := *cur
		tc = &copied
	}
	tc.Document = label
	return WithTrace(ctx, tc)
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext creates a TraceContext with generated IDs.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		RequestID: uuid.New().String(),
	}
}
