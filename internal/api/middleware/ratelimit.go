package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// ChatTurnsPerMinute bounds chat turns per client, over HTTP and websocket.
const ChatTurnsPerMinute = 30

// ChatRateLimit returns a rate limiter for chat endpoints (30 per minute)
func ChatRateLimit() fiber.Handler {
	return RateLimit(ChatTurnsPerMinute, time.Minute, "chat")
}

// RateLimit limits requests per client IP within each expiration window.
func RateLimit(max int, expiration time.Duration, scope string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if subject := AdminSubject(c); subject != "" {
				return fmt.Sprintf("%s:admin:%s", scope, subject)
			}
			return fmt.Sprintf("%s:ip:%s", scope, c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please wait before sending more requests.",
			})
		},
		SkipFailedRequests: true,
	})
}
