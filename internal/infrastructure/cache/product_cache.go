package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jecaicedo27/toppingfrozen-sub005/internal/domain/catalog"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// DefaultProductPrefix namespaces product keys in a shared Redis.
const DefaultProductPrefix = "ledger:product:"

// ProductCache is a Redis-backed catalog.Cache shared across processes.
// Redis failures degrade to cache misses; resolution then falls through to
// the ledger.
type ProductCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

// NewProductCache creates a cache. A zero ttl keeps entries until deleted.
func NewProductCache(client *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *ProductCache {
	if prefix == "" {
		prefix = DefaultProductPrefix
	}
	return &ProductCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    log.OrDefault().WithComponent("product_cache"),
	}
}

func (c *ProductCache) key(code string) string {
	return c.prefix + code
}

// Get implements catalog.Cache.
func (c *ProductCache) Get(ctx context.Context, code string) (catalog.ProductReference, bool) {
	payload, err := c.client.Get(ctx, c.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return catalog.ProductReference{}, false
	}
	if err != nil {
		c.log.WithContext(ctx).Warnw("product cache read failed", "code", code, "error", err)
		return catalog.ProductReference{}, false
	}

	var ref catalog.ProductReference
	if err := json.Unmarshal(payload, &ref); err != nil {
		c.log.WithContext(ctx).Warnw("product cache entry corrupt", "code", code, "error", err)
		return catalog.ProductReference{}, false
	}
	return ref, true
}

// Put implements catalog.Cache. The first value stored for a code wins.
func (c *ProductCache) Put(ctx context.Context, code string, ref catalog.ProductReference) {
	payload, err := json.Marshal(ref)
	if err != nil {
		c.log.WithContext(ctx).Warnw("product cache encode failed", "code", code, "error", err)
		return
	}
	if err := c.client.SetNX(ctx, c.key(code), payload, c.ttl).Err(); err != nil {
		c.log.WithContext(ctx).Warnw("product cache write failed", "code", code, "error", err)
	}
}

// Delete drops the entries for codes, e.g. after a catalog price change.
func (c *ProductCache) Delete(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = c.key(code)
	}
	return c.client.Del(ctx, keys...).Err()
}

var _ catalog.Cache = (*ProductCache)(nil)
