package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/paygate/internal/domain/entity"
	"github.com/bivex/paygate/internal/domain/repository"
)

const (
	KeyProduct = "catalog:product:%s"
	TTLProduct = 5 * time.Minute
)

// ProductCache is a read-through Redis cache in front of the product catalog.
// Redis errors fall back to the underlying repository.
type ProductCache struct {
	next   repository.ProductRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProductCache creates a new product cache
func NewProductCache(next repository.ProductRepository, client *redis.Client, logger *zap.Logger) *ProductCache {
	return &ProductCache{
		next:   next,
		client: client,
		ttl:    TTLProduct,
		logger: logger,
	}
}

// GetByCode returns the cached product or loads and caches it
func (c *ProductCache) GetByCode(ctx context.Context, code string) (*entity.Product, error) {
	key := fmt.Sprintf(KeyProduct, code)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product entity.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		c.logger.Warn("Dropping unreadable cached product", zap.String("code", code))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Product cache unavailable", zap.String("code", code), zap.Error(err))
	}

	product, err := c.next.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Failed to cache product", zap.String("code", code), zap.Error(err))
		}
	}
	return product, nil
}

// Invalidate drops a cached product
func (c *ProductCache) Invalidate(ctx context.Context, code string) error {
	return c.client.Del(ctx, fmt.Sprintf(KeyProduct, code)).Err()
}
