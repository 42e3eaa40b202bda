package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxmind/voxmind-backend/internal/api/handlers"
	"github.com/voxmind/voxmind-backend/internal/api/middleware"
	"github.com/voxmind/voxmind-backend/internal/auth"
	"github.com/voxmind/voxmind-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, jwtService *auth.JWTService, db handlers.Pinger) {
	api := app.Group("/api/v1")

	api.Get("/health", handlers.Health(db))

	// Conversations
	api.Post("/conversations", handlers.CreateConversation(svc))
	api.Get("/conversations", handlers.ListConversations(svc))
	api.Get("/conversations/:id", handlers.GetConversation(svc))
	api.Patch("/conversations/:id", handlers.UpdateConversation(svc))
	api.Delete("/conversations/:id", handlers.DeleteConversation(svc))
	api.Get("/conversations/:id/summary", handlers.GetSummary(svc))

	// Chat turns call paid upstream APIs
	chatLimit := middleware.ChatRateLimit()
	api.Post("/conversations/:id/messages", chatLimit, handlers.SendMessage(svc))
	api.Post("/conversations/:id/summarize", chatLimit, handlers.Summarize(svc))
	api.Post("/chat/completions", chatLimit, handlers.ChatCompletions(svc))
	api.Post("/chat", chatLimit, handlers.VoiceChat(svc))
	api.Post("/tts_only", chatLimit, handlers.TTSOnly(svc))

	// Speech catalogue and stored audio
	api.Get("/available_voices", handlers.AvailableVoices(svc))
	api.Get("/available_models", handlers.AvailableModels(svc))
	api.Post("/update_model", handlers.UpdateModel(svc))
	api.Get("/audio/:id", handlers.GetAudio(svc))

	// Admin
	admin := middleware.AdminRequired(jwtService)
	audit := middleware.AdminAudit(svc.Logger)
	api.Get("/status", admin, audit, handlers.Status(svc))
	api.Post("/api-keys/submit", admin, audit, handlers.SubmitAPIKeys(svc))
	api.Get("/api-keys/status", admin, audit, handlers.APIKeyStatus(svc))
	api.Delete("/api-keys/reset", admin, audit, handlers.ResetAPIKeys(svc))

	setupWebSocket(app, svc, chatLimit)
}
