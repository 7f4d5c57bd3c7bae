package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

type countingSource struct {
	mu     sync.Mutex
	policy pricing.Policy
	err    error
	calls  int
}

func (s *countingSource) Policy(context.Context) (pricing.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.policy, s.err
}

func (s *countingSource) set(p pricing.Policy, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy, s.err = p, err
}

func TestPolicyCache_LoadsOnce(t *testing.T) {
	src := &countingSource{policy: pricing.DefaultPolicy()}
	c := NewPolicyCache(src, nil, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.Policy(ctx)
		require.NoError(t, err)
		assert.True(t, p.UseCatalogPrices)
	}
	assert.Equal(t, 1, src.calls)
}

func TestPolicyCache_StartAndStop(t *testing.T) {
	src := &countingSource{policy: pricing.DefaultPolicy()}
	c := NewPolicyCache(src, nil, logger.Nop())

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 1, src.calls)

	c.Stop()
	c.Stop()
}

func TestPolicyCache_StartFails(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	c := NewPolicyCache(src, nil, logger.Nop())

	err := c.Start(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestPolicyCache_NotificationReloads(t *testing.T) {
	src := &countingSource{policy: pricing.DefaultPolicy()}
	c := NewPolicyCache(src, nil, logger.Nop())
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	var got []string
	c.OnInvalidation(func(channel, payload string) { got = append(got, payload) })
	c.OnInvalidation(func(string, string) { panic("boom") })

	changed := pricing.DefaultPolicy()
	changed.PricesIncludeTax = true
	src.set(changed, nil)

	c.handleNotification("other_channel", "x")
	p, err := c.Policy(context.Background())
	require.NoError(t, err)
	assert.False(t, p.PricesIncludeTax)

	c.handleNotification(PolicyChannel, "siigo_prices_include_tax")
	p, err = c.Policy(context.Background())
	require.NoError(t, err)
	assert.True(t, p.PricesIncludeTax)
	assert.Equal(t, []string{"siigo_prices_include_tax"}, got)
}

func TestPolicyCache_FailedReloadKeepsPrevious(t *testing.T) {
	src := &countingSource{policy: pricing.DefaultPolicy()}
	c := NewPolicyCache(src, nil, logger.Nop())
	ctx := context.Background()

	_, err := c.Policy(ctx)
	require.NoError(t, err)

	invalid := pricing.DefaultPolicy()
	invalid.DefaultTaxRate = decimal.NewFromInt(-5)
	src.set(invalid, nil)
	assert.Error(t, c.Invalidate(ctx))

	p, err := c.Policy(ctx)
	require.NoError(t, err)
	assert.True(t, p.DefaultTaxRate.Equal(decimal.NewFromInt(19)))
}

func TestPolicyCache_ReturnsCopies(t *testing.T) {
	src := &countingSource{policy: pricing.DefaultPolicy()}
	c := NewPolicyCache(src, nil, logger.Nop())
	ctx := context.Background()

	p, err := c.Policy(ctx)
	require.NoError(t, err)
	p.BarcodePrefixes[0] = "000"

	p, err = c.Policy(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"770"}, p.BarcodePrefixes)
}
