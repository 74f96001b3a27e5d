package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{ip}:connect - per-window websocket handshake attempts
// - ratelimit:{user_id}:messages - per-window REST message sends

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	ConnectLimit  int
	ConnectWindow time.Duration
	MessageLimit  int
	MessageWindow time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ConnectLimit:  30,
		ConnectWindow: time.Minute,
		MessageLimit:  120,
		MessageWindow: time.Minute,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client goredis.UniversalClient
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

var rateLimitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		local count = redis.call('INCR', key)
		if count == 1 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - count, ttl}
	end
	return {0, 0, ttl}
`)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client goredis.UniversalClient, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config}
}

// AllowConnect checks if an address may open another websocket
func (r *RateLimiter) AllowConnect(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:connect", ip), r.config.ConnectLimit, r.config.ConnectWindow)
}

// AllowMessage checks if a user may send another message
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, fmt.Sprintf("ratelimit:%s:messages", userID), r.config.MessageLimit, r.config.MessageWindow)
}

// checkLimit performs an atomic fixed-window counter check
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: 0, Limit: limit}, nil
	}
	seconds := int(window.Seconds())
	if seconds <= 0 {
		seconds = 1
	}

	result, err := rateLimitScript.Run(ctx, r.client, []string{key}, limit, seconds).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     limit,
	}, nil
}
