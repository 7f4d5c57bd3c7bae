// Package cache provides caching infrastructure: a Redis product cache and
// a pricing policy cache invalidated through PostgreSQL LISTEN/NOTIFY.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/pricing"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// PolicyChannel is the NOTIFY channel fired when system_config changes.
const PolicyChannel = "system_config_changed"

// InvalidationListener is called after the cached policy was reloaded.
type InvalidationListener func(channel string, payload string)

// PolicyCache keeps the last pricing policy read from a source and reloads
// it when the database announces a config change. With a nil pool it only
// caches, and Invalidate is the sole way to refresh.
type PolicyCache struct {
	source pricing.Source
	pool   *pgxpool.Pool
	log    *logger.Logger

	mu     sync.RWMutex
	policy pricing.Policy
	loaded bool

	listeners   []InvalidationListener
	listenersMu sync.RWMutex

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewPolicyCache creates a cache over source.
func NewPolicyCache(source pricing.Source, pool *pgxpool.Pool, log *logger.Logger) *PolicyCache {
	return &PolicyCache{
		source: source,
		pool:   pool,
		log:    log.OrDefault().WithComponent("policy_cache"),
	}
}

// Start loads the policy and begins listening for NOTIFY events.
func (c *PolicyCache) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.reload(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load pricing policy: %w", err)
	}

	if c.pool != nil {
		c.wg.Add(1)
		go c.listenLoop()
	}
	c.log.Infow("policy cache started", "listening", c.pool != nil)
	return nil
}

// Stop ends the listener and waits for it.
func (c *PolicyCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.log.Infow("policy cache stopped")
}

// Policy implements pricing.Source. The first call loads lazily when Start
// was not used.
func (c *PolicyCache) Policy(ctx context.Context) (pricing.Policy, error) {
	c.mu.RLock()
	if c.loaded {
		p := clonePolicy(c.policy)
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	if err := c.reload(ctx); err != nil {
		return pricing.Policy{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return clonePolicy(c.policy), nil
}

// Invalidate reloads the policy now. On failure the previous value stays.
func (c *PolicyCache) Invalidate(ctx context.Context) error {
	return c.reload(ctx)
}

// OnInvalidation registers a callback run after each NOTIFY.
func (c *PolicyCache) OnInvalidation(listener InvalidationListener) {
	c.listenersMu.Lock()
	c.listeners = append(c.listeners, listener)
	c.listenersMu.Unlock()
}

func (c *PolicyCache) reload(ctx context.Context) error {
	p, err := c.source.Policy(ctx)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.policy = p
	c.loaded = true
	c.mu.Unlock()

	c.log.WithContext(ctx).Debugw("pricing policy loaded",
		"use_catalog_prices", p.UseCatalogPrices,
		"prices_include_tax", p.PricesIncludeTax,
		"tax_rate", p.DefaultTaxRate.String())
	return nil
}

// listenLoop keeps a dedicated connection subscribed to PolicyChannel.
func (c *PolicyCache) listenLoop() {
	defer c.wg.Done()

	for {
		if c.ctx.Err() != nil {
			return
		}

		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			c.log.Errorw("failed to acquire connection for LISTEN", "error", err)
			c.pause()
			continue
		}

		if _, err := conn.Exec(c.ctx, "LISTEN "+PolicyChannel); err != nil {
			c.log.Errorw("failed to LISTEN", "error", err)
			conn.Release()
			c.pause()
			continue
		}

		c.log.Infow("listening for config notifications", "channel", PolicyChannel)
		c.waitForNotifications(conn)
		conn.Release()
	}
}

func (c *PolicyCache) pause() {
	select {
	case <-c.ctx.Done():
	case <-time.After(time.Second):
	}
}

// waitForNotifications blocks until the context ends or the connection fails.
func (c *PolicyCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			c.log.Warnw("notification wait failed, reconnecting", "error", err)
			return
		}

		c.handleNotification(notification.Channel, notification.Payload)
	}
}

// handleNotification reloads on config changes and informs listeners.
func (c *PolicyCache) handleNotification(channel, payload string) {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if channel != PolicyChannel {
		return
	}

	if err := c.reload(ctx); err != nil {
		c.log.Errorw("failed to reload pricing policy", "key", payload, "error", err)
	}

	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()
	for _, listener := range c.listeners {
		func(l InvalidationListener) {
			defer func() {
				if r := recover(); r != nil {
					c.log.Errorw("listener panic recovered", "channel", channel, "panic", r)
				}
			}()
			l(channel, payload)
		}(listener)
	}
}

func clonePolicy(p pricing.Policy) pricing.Policy {
	p.BarcodePrefixes = append([]string(nil), p.BarcodePrefixes...)
	return p
}

var _ pricing.Source = (*PolicyCache)(nil)
