package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fssa-batch3/homebakery-backend/pkg/redis"
)

// SheetCache keeps the catalog-wide current price sheet in redis.
type SheetCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSheetCache(client *redis.Client, ttl time.Duration) (*SheetCache, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if ttl <= 0 {
		return nil, errors.New("sheet cache ttl must be positive")
	}
	return &SheetCache{client: client, ttl: ttl}, nil
}

// Load returns the cached sheet. The boolean is false on a cache miss.
func (c *SheetCache) Load(ctx context.Context) ([]PriceDTO, bool, error) {
	raw, err := c.client.Get(ctx, c.client.PriceSheetKey())
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get price sheet: %w", err)
	}
	var sheet []PriceDTO
	if err := json.Unmarshal([]byte(raw), &sheet); err != nil {
		return nil, false, fmt.Errorf("decode price sheet: %w", err)
	}
	return sheet, true, nil
}

func (c *SheetCache) Store(ctx context.Context, sheet []PriceDTO) error {
	payload, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("encode price sheet: %w", err)
	}
	if err := c.client.Set(ctx, c.client.PriceSheetKey(), payload, c.ttl); err != nil {
		return fmt.Errorf("set price sheet: %w", err)
	}
	return nil
}

func (c *SheetCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.client.PriceSheetKey()); err != nil {
		return fmt.Errorf("invalidate price sheet: %w", err)
	}
	return nil
}
