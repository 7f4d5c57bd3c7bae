package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTrace(t *testing.T) {
	ctx := EnsureTrace(context.Background())
	tc := GetTrace(ctx)
	require.NotNil(t, tc)
	assert.NotEmpty(t, tc.TraceID)
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))

	assert.Same(t, tc, GetTrace(EnsureTrace(ctx)), "existing trace kept")
}

func TestWithDocument(t *testing.T) {
	base := EnsureTrace(context.Background())
	labeled := WithDocument(base, "order-42.json")

	assert.Equal(t, "order-42.json", GetTrace(labeled).Document)
	assert.Equal(t, GetTrace(base).TraceID, GetTrace(labeled).TraceID)
	assert.Empty(t, GetTrace(base).Document, "parent trace untouched")

	fresh := WithDocument(context.Background(), "x")
	assert.NotEmpty(t, GetTrace(fresh).RequestID)
}

func TestGetRequestID_Empty(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}
