package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

const (
	projectionKeyPrefix = "payment_projection:"
	// Terminal projections never change again, but a short TTL keeps the
	// cache honest if an operator fixes data by hand.
	projectionTTL = 10 * time.Minute
)

// ProjectionCache short-circuits status polling for finished orders. Only
// terminal projections are cached; an in-flight order always hits the
// database.
type ProjectionCache struct {
	client *redis.Client
	logger *logger.Logger
}

func NewProjectionCache(client *redis.Client, log *logger.Logger) *ProjectionCache {
	return &ProjectionCache{client: client, logger: log}
}

func (c *ProjectionCache) Get(ctx context.Context, orderCode string) *models.PaymentProjection {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, projectionKeyPrefix+orderCode).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("CACHE", "projection read failed: "+err.Error())
		}
		return nil
	}
	projection := new(models.PaymentProjection)
	if err := json.Unmarshal(raw, projection); err != nil {
		return nil
	}
	return projection
}

func (c *ProjectionCache) Put(ctx context.Context, projection *models.PaymentProjection) {
	if c == nil || c.client == nil || projection == nil {
		return
	}
	if !projection.PaymentStatus.Terminal() {
		return
	}
	raw, err := json.Marshal(projection)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, projectionKeyPrefix+projection.OrderCode, raw, projectionTTL).Err(); err != nil {
		c.logger.Warn("CACHE", "projection write failed: "+err.Error())
	}
}
