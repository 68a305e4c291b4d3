// Package cache provides a redis-backed read-through cache for products.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/quickshop/catalog/internal/app/domain/product"
	"github.com/quickshop/catalog/pkg/logger"
)

const productKeyPrefix = "product:"

// reserveStockScript atomically decrements a cached stock counter, failing
// when the remaining stock is insufficient.
var reserveStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

// ProductCache caches product records with a TTL. Cache failures are logged
// and treated as misses so redis outages never fail requests.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewProductCache constructs a cache around an existing redis client.
func NewProductCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *ProductCache {
	if log == nil {
		log = logger.NewDefault("cache")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{client: client, ttl: ttl, log: log}
}

// Get returns the cached product, if present.
func (c *ProductCache) Get(ctx context.Context, id string) (product.Product, bool) {
	data, err := c.client.Get(ctx, productKeyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Debug("cache get failed")
		}
		return product.Product{}, false
	}

	var p product.Product
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.WithError(err).Warn("cache entry corrupt; dropping")
		c.Invalidate(ctx, id)
		return product.Product{}, false
	}
	return p, true
}

// Set stores a product under its ID.
func (c *ProductCache) Set(ctx context.Context, p product.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		c.log.WithError(err).Warn("cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, productKeyPrefix+p.ID, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Debug("cache set failed")
	}
}

// Invalidate removes a product from the cache.
func (c *ProductCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, productKeyPrefix+id).Err(); err != nil {
		c.log.WithError(err).Debug("cache invalidate failed")
	}
}

// ReserveStock atomically decrements a stock counter keyed by product ID.
// It returns false when the counter exists but holds less than quantity.
// A missing counter reports an error so the caller can fall back to the
// store.
func (c *ProductCache) ReserveStock(ctx context.Context, id string, quantity int) (bool, error) {
	result, err := reserveStockScript.Run(ctx, c.client, []string{"stock:" + id}, quantity).Int()
	if err != nil {
		return false, err
	}
	switch result {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, errors.New("stock counter not primed")
	}
}

// PrimeStock seeds the stock counter used by ReserveStock.
func (c *ProductCache) PrimeStock(ctx context.Context, id string, stock int) error {
	return c.client.Set(ctx, "stock:"+id, stock, 0).Err()
}
