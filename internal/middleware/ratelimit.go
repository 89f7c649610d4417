package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/metrics"
	"github.com/repodock/repodock/internal/service"
)

// RateLimitConfig binds one endpoint class to its quota.
type RateLimitConfig struct {
	// Class names the endpoint class in window keys and metrics ("api",
	// "import").
	Class  string
	Limit  int
	Window time.Duration
}

// RateLimit enforces a sliding-window quota per caller. Authenticated
// callers are keyed by email, anonymous ones by client IP. Every response
// carries the X-RateLimit headers; denials get 429 with Retry-After.
func RateLimit(limiter *service.RateLimiter, m *metrics.Metrics, cfg RateLimitConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		subject := c.IP()
		if uc := GetUserContext(c); uc != nil {
			subject = uc.Email
		}

		d := limiter.Allow(c.Context(), service.RateKey(cfg.Class, subject), cfg.Limit, cfg.Window)

		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt, 10))

		if !d.Allowed {
			m.RecordRateLimitDenial(cfg.Class)
			c.Set("Retry-After", strconv.Itoa(d.RetryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"retry_after": d.RetryAfter,
			})
		}

		return c.Next()
	}
}
