package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"chartdesk/internal/model"
)

// CandleCache stores fetched candle batches under a key derived from the
// fetch request.
type CandleCache struct {
	client  *goredis.Client
	breaker *CircuitBreaker
}

// NewCandleCache wraps an existing client.
func NewCandleCache(client *goredis.Client, breaker *CircuitBreaker) *CandleCache {
	if breaker == nil {
		breaker = NewCircuitBreaker("redis-candles", 5, 10*time.Second)
	}
	return &CandleCache{client: client, breaker: breaker}
}

// Breaker exposes the breaker for health reporting.
func (c *CandleCache) Breaker() *CircuitBreaker { return c.breaker }

// CandleKey returns the cache key for req.
func CandleKey(req model.FetchRequest) string {
	return fmt.Sprintf("chart:candles:%s:%s:%d:%d", strings.ToUpper(req.Symbol), req.Resolution, req.From, req.To)
}

// Get returns the cached batch for req, or nil on a miss.
func (c *CandleCache) Get(ctx context.Context, req model.FetchRequest) (*model.CandleBatch, error) {
	var data []byte
	err := c.breaker.Execute(func() error {
		b, err := c.client.Get(ctx, CandleKey(req)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		data = b
		return err
	})
	if err != nil || data == nil {
		return nil, err
	}
	var batch model.CandleBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("decode cached candles: %w", err)
	}
	return &batch, nil
}

// Set stores batch for req with the given TTL.
func (c *CandleCache) Set(ctx context.Context, req model.FetchRequest, batch *model.CandleBatch, ttl time.Duration) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode candles: %w", err)
	}
	return c.breaker.Execute(func() error {
		return c.client.Set(ctx, CandleKey(req), data, ttl).Err()
	})
}

// Ping reports whether redis answers.
func (c *CandleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
