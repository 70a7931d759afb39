package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/paywave/paywave/internal/apperr"
)

// RedeemRateLimit caps redemption attempts per caller per minute using Redis.
// It fails open: without Redis, or on cache errors, requests pass through.
func RedeemRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		caller := CallerID(c)
		if caller == "" {
			caller = c.IP()
		}
		key := "rl:redeem:" + caller
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return apperr.New(http.StatusTooManyRequests, apperr.CodeRateLimited, "too many redemption attempts, try again later")
		}
		return c.Next()
	}
}
