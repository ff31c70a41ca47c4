package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter implements sliding window rate limiting using Redis.
// The window is shared by every process using the same prefix and key.
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier (e.g., "market_data", "filing_scraper")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// slidingWindowScript trims the window, then admits the request when under the limit.
// Returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1, 0}
	end

	-- 가장 오래된 요청이 윈도우를 벗어나는 시점까지 대기
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = window_ms
	if oldest[2] then
		retry = tonumber(oldest[2]) + window_ms - now
	end
	return {0, 0, retry}
`)

// minWait bounds the polling interval of Wait
const minWait = 10 * time.Millisecond

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	allowed, remaining, _, err := r.allow(ctx, cfg)
	return allowed, remaining, err
}

func (r *RateLimiter) allow(ctx context.Context, cfg RateLimitConfig) (bool, int, time.Duration, error) {
	if !r.client.Enabled() {
		// Redis 비활성화 시 모두 허용
		return true, cfg.Limit, 0, nil
	}

	now := time.Now().UnixMilli()
	// 같은 ms에 여러 워커가 요청해도 멤버가 겹치지 않도록
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	result, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{r.key(cfg)},
		now,
		cfg.Window.Milliseconds(),
		cfg.Limit,
		member,
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 3 {
		return false, 0, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}

	retryAfter := time.Duration(result[2]) * time.Millisecond
	return result[0] == 1, int(result[1]), retryAfter, nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, retryAfter, err := r.allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if retryAfter < minWait {
			retryAfter = minWait
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}
	}
}

// Reset clears the window for cfg.Key
func (r *RateLimiter) Reset(ctx context.Context, cfg RateLimitConfig) error {
	if !r.client.Enabled() {
		return nil
	}
	return r.client.Redis().Del(ctx, r.key(cfg)).Err()
}

func (r *RateLimiter) key(cfg RateLimitConfig) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
}

// Predefined rate limit configs for external APIs
var (
	// Market data API: 초당 5회 제한 (워커 전체 공유)
	MarketDataRateLimit = RateLimitConfig{
		Key:    "market_data",
		Limit:  5,
		Window: time.Second,
	}

	// Filing table scraper: 초당 2회 제한 (보수적)
	FilingScraperRateLimit = RateLimitConfig{
		Key:    "filing_scraper",
		Limit:  2,
		Window: time.Second,
	}

	// Remote component services: 초당 10회 제한
	ComponentServiceRateLimit = RateLimitConfig{
		Key:    "component_service",
		Limit:  10,
		Window: time.Second,
	}
)
