package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

func newTestProductCache(t *testing.T, ttl time.Duration) (*ProductCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProductCache(client, "", ttl, logger.Nop()), mr
}

func sampleRef() catalog.ProductReference {
	return catalog.ProductReference{
		Code:      "LIQUIPP07",
		LedgerID:  "9b1d",
		Name:      "Liquipops maracuya",
		BasePrice: decimal.RequireFromString("1234.56"),
		Taxes:     []catalog.TaxRef{{ID: 8095}},
	}
}

func TestProductCache_RoundTrip(t *testing.T) {
	c, mr := newTestProductCache(t, 0)
	ctx := context.Background()

	_, ok := c.Get(ctx, "LIQUIPP07")
	assert.False(t, ok)

	c.Put(ctx, "LIQUIPP07", sampleRef())
	assert.True(t, mr.Exists(DefaultProductPrefix+"LIQUIPP07"))

	got, ok := c.Get(ctx, "LIQUIPP07")
	require.True(t, ok)
	assert.Equal(t, "Liquipops maracuya", got.Name)
	assert.True(t, got.BasePrice.Equal(decimal.RequireFromString("1234.56")))
	assert.Equal(t, []catalog.TaxRef{{ID: 8095}}, got.Taxes)
}

func TestProductCache_FirstWriteWins(t *testing.T) {
	c, _ := newTestProductCache(t, 0)
	ctx := context.Background()

	c.Put(ctx, "X", sampleRef())
	other := sampleRef()
	other.Name = "changed"
	c.Put(ctx, "X", other)

	got, ok := c.Get(ctx, "X")
	require.True(t, ok)
	assert.Equal(t, "Liquipops maracuya", got.Name)
}

func TestProductCache_TTL(t *testing.T) {
	c, mr := newTestProductCache(t, time.Minute)
	ctx := context.Background()

	c.Put(ctx, "X", sampleRef())
	assert.Equal(t, time.Minute, mr.TTL(DefaultProductPrefix+"X"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "X")
	assert.False(t, ok)
}

func TestProductCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestProductCache(t, 0)
	require.NoError(t, mr.Set(DefaultProductPrefix+"X", "{not json"))

	_, ok := c.Get(context.Background(), "X")
	assert.False(t, ok)
}

func TestProductCache_Delete(t *testing.T) {
	c, _ := newTestProductCache(t, 0)
	ctx := context.Background()

	c.Put(ctx, "A", sampleRef())
	c.Put(ctx, "B", sampleRef())
	require.NoError(t, c.Delete(ctx, "A", "B"))
	require.NoError(t, c.Delete(ctx))

	_, ok := c.Get(ctx, "A")
	assert.False(t, ok)
}

func TestProductCache_RedisDownIsMiss(t *testing.T) {
	c, mr := newTestProductCache(t, 0)
	mr.Close()

	ctx := context.Background()
	c.Put(ctx, "X", sampleRef())
	_, ok := c.Get(ctx, "X")
	assert.False(t, ok)
}

func TestProductCache_BacksResolver(t *testing.T) {
	c, _ := newTestProductCache(t, 0)
	ctx := context.Background()

	lookup := lookupFunc(func(_ context.Context, code string) (catalog.ProductReference, error) {
		ref := sampleRef()
		ref.Code = code
		return ref, nil
	})
	r := catalog.NewResolver(lookup, c, logger.Nop())

	res, err := r.Resolve(ctx, []string{"liquipp07"}, "")
	require.NoError(t, err)
	assert.Equal(t, "LIQUIPP07", res.Code)

	_, ok := c.Get(ctx, "LIQUIPP07")
	assert.True(t, ok)
}

type lookupFunc func(ctx context.Context, code string) (catalog.ProductReference, error)

func (f lookupFunc) LookupProduct(ctx context.Context, code string) (catalog.ProductReference, error) {
	return f(ctx, code)
}
