package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"licensegate/internal/model"
)

const (
	// TokenCachePrefix is the key prefix for cached token records.
	TokenCachePrefix = "token:record:"

	// TokenCacheTTL bounds staleness if an invalidation is ever lost.
	TokenCacheTTL = 1 * time.Hour
)

// TokenCache is a read-through cache for token records. The cache is an
// optimization only: every mutation invalidates, misses fall back to the
// store, and cache failures must never fail the request.
type TokenCache interface {
	// Get returns the cached record, found=false on a miss.
	Get(ctx context.Context, token string) (record *model.TokenRecord, found bool, err error)
	// Set stores a record under its token key.
	Set(ctx context.Context, record *model.TokenRecord) error
	// Invalidate drops the cached record after a mutation.
	Invalidate(ctx context.Context, token string) error
}

// RedisTokenCache implements TokenCache on Redis string keys with JSON values.
type RedisTokenCache struct {
	client *redis.Client
}

func NewTokenCache(client *redis.Client) TokenCache {
	return &RedisTokenCache{client: client}
}

func tokenKey(token string) string {
	return TokenCachePrefix + token
}

func (c *RedisTokenCache) Get(ctx context.Context, token string) (*model.TokenRecord, bool, error) {
	raw, err := c.client.Get(ctx, tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", token, err)
	}

	var record model.TokenRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		// A corrupt entry behaves like a miss; drop it so it gets rewritten.
		log.Warn().Str("token", token).Err(err).Msg("Dropping undecodable cache entry")
		c.client.Del(ctx, tokenKey(token))
		return nil, false, nil
	}
	return &record, true, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, record *model.TokenRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", record.Token, err)
	}
	if err := c.client.Set(ctx, tokenKey(record.Token), raw, TokenCacheTTL).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", record.Token, err)
	}
	return nil
}

func (c *RedisTokenCache) Invalidate(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", token, err)
	}
	return nil
}

// NoopTokenCache is used when no Redis URL is configured: every lookup is a
// miss and writes go nowhere.
type NoopTokenCache struct{}

func NewNoopTokenCache() TokenCache {
	return NoopTokenCache{}
}

func (NoopTokenCache) Get(ctx context.Context, token string) (*model.TokenRecord, bool, error) {
	return nil, false, nil
}

func (NoopTokenCache) Set(ctx context.Context, record *model.TokenRecord) error { return nil }

func (NoopTokenCache) Invalidate(ctx context.Context, token string) error { return nil }
