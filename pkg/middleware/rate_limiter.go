package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nosht/nosht/pkg/logger"
	"github.com/nosht/nosht/pkg/response"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Requests allowed per Window per caller (0 = unlimited)
	Limit  int
	Window time.Duration
	// Redis client for limits shared across instances. nil falls back to an in-process bucket.
	RedisClient redis.Cmdable
	KeyPrefix   string
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:     60,
		Window:    time.Minute,
		KeyPrefix: "nosht:ratelimit:",
	}
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, err error)
}

// RedisRateLimiter is a fixed-window counter kept in Redis
type RedisRateLimiter struct {
	config RateLimitConfig
}

// NewRedisRateLimiter creates a new Redis rate limiter
func NewRedisRateLimiter(config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{config: config}
}

// Allow increments the caller's counter, starting the window on the first hit
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	k := rl.config.KeyPrefix + key

	count, err := rl.config.RedisClient.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := rl.config.RedisClient.Expire(ctx, k, rl.config.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	remaining := rl.config.Limit - int(count)
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// LocalRateLimiter is an in-memory token bucket used when Redis is not configured
type LocalRateLimiter struct {
	config  RateLimitConfig
	buckets sync.Map

	totalAllowed  uint64
	totalRejected uint64
}

// NewLocalRateLimiter creates a new local rate limiter
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	return &LocalRateLimiter{config: config}
}

// Allow takes a token from the caller's bucket, refilling at Limit per Window
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	now := time.Now()
	capacity := float64(rl.config.Limit)

	v, _ := rl.buckets.LoadOrStore(key, &bucket{tokens: capacity, lastUpdate: now})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	refill := now.Sub(b.lastUpdate).Seconds() / rl.config.Window.Seconds() * capacity
	b.tokens = min(capacity, b.tokens+refill)
	b.lastUpdate = now

	if b.tokens >= 1 {
		b.tokens--
		atomic.AddUint64(&rl.totalAllowed, 1)
		return true, int(b.tokens), nil
	}

	atomic.AddUint64(&rl.totalRejected, 1)
	return false, 0, nil
}

// GetStats returns rate limiter statistics
func (rl *LocalRateLimiter) GetStats() (allowed, rejected uint64) {
	return atomic.LoadUint64(&rl.totalAllowed), atomic.LoadUint64(&rl.totalRejected)
}

// RateLimiter limits requests per session user, or per client IP for anonymous callers.
// Redis errors fail open.
func RateLimiter(config RateLimitConfig) gin.HandlerFunc {
	if config.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var limiter Limiter
	if config.RedisClient != nil {
		limiter = NewRedisRateLimiter(config)
	} else {
		limiter = NewLocalRateLimiter(config)
	}

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if s, ok := GetSession(c); ok {
			key = fmt.Sprintf("user:%d", s.UserID)
		}

		allowed, remaining, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Get().WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request", zap.Error(err))
			allowed, remaining = true, config.Limit-1
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(config.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response.TooManyRequests(""))
			return
		}

		c.Next()
	}
}
