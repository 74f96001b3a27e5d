package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const registryKeyPrefix = "socket:"

// DefaultRegistryTTL bounds how long a mapping survives without a refresh.
const DefaultRegistryTTL = 24 * time.Hour

var (
	unregisterScript = goredis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('DEL', KEYS[1])
		end
		return 0
	`)

	refreshScript = goredis.NewScript(`
		if redis.call('GET', KEYS[1]) == ARGV[1] then
			return redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// Registry maps a user to the handle of their single live connection. It
// lives in Redis so every instance can route to a connection held by
// another one.
type Registry struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewRegistry(client goredis.UniversalClient, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	return &Registry{client: client, ttl: ttl}
}

func RegistryKey(userID string) string {
	return registryKeyPrefix + userID
}

// Register points userID at handleID, superseding any previous connection.
func (r *Registry) Register(ctx context.Context, userID, handleID string) error {
	return r.client.Set(ctx, RegistryKey(userID), handleID, r.ttl).Err()
}

// Lookup returns the live handle for userID, if any.
func (r *Registry) Lookup(ctx context.Context, userID string) (string, bool, error) {
	handleID, err := r.client.Get(ctx, RegistryKey(userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return handleID, true, nil
}

// Unregister removes the mapping only while it still names handleID, so a
// late disconnect of a superseded connection cannot erase its successor.
func (r *Registry) Unregister(ctx context.Context, userID, handleID string) (bool, error) {
	n, err := unregisterScript.Run(ctx, r.client, []string{RegistryKey(userID)}, handleID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Refresh extends the mapping's lifetime if handleID still owns it.
func (r *Registry) Refresh(ctx context.Context, userID, handleID string) (bool, error) {
	n, err := refreshScript.Run(ctx, r.client, []string{RegistryKey(userID)}, handleID, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
