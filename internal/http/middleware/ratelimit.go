package middleware

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// Throttle admits requests through one token bucket shared by every caller of
// the route. Over the limit it answers 429 with Retry-After in seconds.
// A non-positive rps disables throttling.
func Throttle(rps float64, burst int) fiber.Handler {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, max(burst, 1))

	return func(c *fiber.Ctx) error {
		r := limiter.Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts")
		}
		return c.Next()
	}
}
