package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/voxmind/voxmind-backend/internal/api/handlers"
	"github.com/voxmind/voxmind-backend/internal/api/middleware"
	"github.com/voxmind/voxmind-backend/internal/services"
)

// setupWebSocket opens conversation sockets. Opening a socket counts against
// the HTTP chat limit, and each socket limits its own turns.
func setupWebSocket(app *fiber.App, svc *services.Services, chatLimit fiber.Handler) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/conversations/:id", chatLimit, websocket.New(handlers.ConversationSocket(svc, middleware.ChatTurnsPerMinute)))
}
