package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voxmind/voxmind-backend/internal/services"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness; 503 when the database cannot be reached.
func Health(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status":  "unhealthy",
					"message": "Service Unavailable",
				})
			}
		}
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "voxmind-backend",
		})
	}
}

// Status reports external API metrics, breaker states and the memory settings
func Status(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		memory := svc.Config.Memory
		return c.JSON(fiber.Map{
			"external_apis": svc.Metrics.Snapshot(),
			"breakers":      svc.Breaker.States(),
			"api_keys":      svc.Keys.Status(),
			"memory": fiber.Map{
				"enabled":             memory.Enabled,
				"max_messages":        memory.MaxMessages,
				"summarize_threshold": memory.SummarizeThreshold,
			},
		})
	}
}
