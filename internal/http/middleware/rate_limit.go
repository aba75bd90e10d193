package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
		KeyPrefix:   "ratelimit",
	}
}

// RateLimit creates a fixed-window, per-IP rate limiting middleware using
// Redis. It fails open when Redis is missing or unavailable.
func RateLimit(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultRateLimitConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}

	return func(c *fiber.Ctx) error {
		if redisClient == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		key := config.KeyPrefix + ":" + c.IP()

		var incr *redis.IntCmd
		var ttl *redis.DurationCmd
		_, err := redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			return c.Next()
		}

		count := incr.Val()
		window := ttl.Val()
		// A negative TTL means the key has no expiry yet: first hit of the window.
		if window < 0 {
			window = config.Window
			if err := redisClient.Expire(ctx, key, config.Window).Err(); err != nil {
				logger.Warn("failed to set rate limit window", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := config.MaxRequests - int(count)
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(window).Unix(), 10))

		if count > int64(config.MaxRequests) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		return c.Next()
	}
}
