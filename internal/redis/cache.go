package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"relay-chat/internal/domain/group"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - group:{group_id} - 5m TTL, directory record with members

// CacheConfig contains configuration for caching
type CacheConfig struct {
	GroupTTL time.Duration
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{GroupTTL: 5 * time.Minute}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client goredis.UniversalClient
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client goredis.UniversalClient, config CacheConfig) *CacheStore {
	if config.GroupTTL <= 0 {
		config.GroupTTL = DefaultCacheConfig().GroupTTL
	}
	return &CacheStore{client: client, config: config}
}

func groupCacheKey(groupID string) string {
	return fmt.Sprintf("group:%s", groupID)
}

// GetGroup retrieves a group from cache. A miss returns (nil, nil).
func (c *CacheStore) GetGroup(ctx context.Context, groupID string) (*group.Group, error) {
	data, err := c.client.Get(ctx, groupCacheKey(groupID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var g group.Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// SetGroup stores a group in cache
func (c *CacheStore) SetGroup(ctx context.Context, g group.Group) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, groupCacheKey(g.ID), data, c.config.GroupTTL).Err()
}

// InvalidateGroup removes a group from cache
func (c *CacheStore) InvalidateGroup(ctx context.Context, groupID string) error {
	return c.client.Del(ctx, groupCacheKey(groupID)).Err()
}
