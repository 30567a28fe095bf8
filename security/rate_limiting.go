package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client

	// maxPerWindow requests per client per window on guarded routes.
	maxPerWindow int64
	window       time.Duration
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redis:        redisClient,
		maxPerWindow: 30,
		window:       time.Minute,
	}
}

// PurchaseGuard rate limits public purchase endpoints by client IP and
// rejects obvious scraper user agents. The IPN route must never sit behind
// this; the gateway has to get through.
func (r *RateLimiter) PurchaseGuard() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		userAgent := e.Request.Header.Get("User-Agent")
		if r.isSuspiciousUserAgent(userAgent) {
			return e.JSON(403, map[string]string{
				"error": "Access denied",
			})
		}

		ip := e.RealIP()
		key := fmt.Sprintf("ratelimit:purchase:%s", ip)

		count, err := r.redis.Incr(e.Request.Context(), key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(e.Request.Context(), key, r.window)
			}
			if count > r.maxPerWindow {
				return e.JSON(429, map[string]string{
					"error": "Too many requests. Please try again later.",
				})
			}
		}

		return e.Next()
	}
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
