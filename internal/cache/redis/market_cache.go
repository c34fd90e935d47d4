package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opinionlabs/settlement-engine/internal/engine"
)

const marketTTL = 5 * time.Minute

// MarketCache is a read-through projection of engine.Market state, keyed by
// external id, with a secondary index from derived market id. Neither the
// engine nor the HTTP read surface reads from it (the read handlers query
// the Postgres stores), so a stale or missing entry never affects a write
// path.
//
// Key schema:
//
//	market:{externalID}     - hash with field "data" containing JSON
//	market:byid:{marketID}  - string value of the external ID
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(externalID string) string  { return "market:" + externalID }
func marketByIDKey(marketID string) string { return "market:byid:" + marketID }

// Set stores a Market projection with a short TTL and an index from its
// derived id back to its external id.
func (mc *MarketCache) Set(ctx context.Context, m *engine.Market) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", m.ExternalID, err)
	}

	key := marketKey(m.ExternalID)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketTTL)
	pipe.Set(ctx, marketByIDKey(string(m.ID)), m.ExternalID, marketTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", m.ExternalID, err)
	}
	return nil
}

// Get retrieves a Market projection by its external id.
func (mc *MarketCache) Get(ctx context.Context, externalID string) (*engine.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(externalID), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get market %s: %w", externalID, err)
	}

	var m engine.Market
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("redis: unmarshal market %s: %w", externalID, err)
	}
	return &m, nil
}

// GetByMarketID looks up a Market projection by its derived id.
func (mc *MarketCache) GetByMarketID(ctx context.Context, marketID string) (*engine.Market, error) {
	externalID, err := mc.rdb.Get(ctx, marketByIDKey(marketID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, engine.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get market by id %s: %w", marketID, err)
	}
	return mc.Get(ctx, externalID)
}

// Invalidate removes a Market projection and its id index entry.
func (mc *MarketCache) Invalidate(ctx context.Context, externalID string) error {
	m, err := mc.Get(ctx, externalID)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("redis: invalidate market %s: %w", externalID, err)
	}

	pipe := mc.rdb.TxPipeline()
	pipe.Del(ctx, marketKey(externalID))
	if err == nil {
		pipe.Del(ctx, marketByIDKey(string(m.ID)))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", externalID, err)
	}
	return nil
}
