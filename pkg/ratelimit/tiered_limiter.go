package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config defines a per-client request budget
type Config struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// Enabled reports whether limiting is configured
func (c Config) Enabled() bool {
	return c.Limit > 0 && c.Window > 0
}

// CheckResult contains the result of a rate limit check
type CheckResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Check(ctx context.Context, key string) (*CheckResult, error)
}

// RedisLimiter is a sliding-window limiter shared by every replica
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
}

// NewRedisLimiter creates a Redis-backed limiter
func NewRedisLimiter(client redis.UniversalClient, config Config, prefix string) *RedisLimiter {
	return &RedisLimiter{redis: client, config: config, prefix: prefix}
}

// Check implements Limiter
func (l *RedisLimiter) Check(ctx context.Context, key string) (*CheckResult, error) {
	redisKey := fmt.Sprintf("%sratelimit:%s", l.prefix, key)
	now := time.Now()
	windowStart := now.Add(-l.config.Window)

	pipe := l.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCount(ctx, redisKey, strconv.FormatInt(windowStart.UnixNano(), 10), "+inf")
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, l.config.Window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := countCmd.Val()
	remaining := l.config.Limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	result := &CheckResult{Allowed: count < l.config.Limit, Remaining: remaining}
	if !result.Allowed {
		result.RetryAfter = l.config.Window
	}
	return result, nil
}

// LocalLimiter is a per-process token bucket per key
type LocalLimiter struct {
	mu       sync.Mutex
	config   Config
	limiters map[string]*rate.Limiter
}

// NewLocalLimiter creates an in-memory limiter
func NewLocalLimiter(config Config) *LocalLimiter {
	return &LocalLimiter{config: config, limiters: make(map[string]*rate.Limiter)}
}

// Check implements Limiter
func (l *LocalLimiter) Check(_ context.Context, key string) (*CheckResult, error) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		every := rate.Every(l.config.Window / time.Duration(l.config.Limit))
		lim = rate.NewLimiter(every, int(l.config.Limit))
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	r := lim.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return &CheckResult{Allowed: false, RetryAfter: delay}, nil
	}
	return &CheckResult{Allowed: true, Remaining: int64(math.Floor(lim.Tokens()))}, nil
}

// Middleware rejects clients over budget with 429; limiter failures let the request through
func Middleware(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.Check(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMITED",
				"message": "too many requests",
				"details": gin.H{"request_id": c.GetString("request_id")},
			})
			return
		}
		c.Next()
	}
}
