package handlers

import (
	"encoding/json"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voxmind/voxmind-backend/internal/services"
)

// SendMessageRequest is a text turn in a stored conversation
type SendMessageRequest struct {
	Message     string   `json:"message"`
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// CompletionRequest is a stateless completion with an explicit history
type CompletionRequest struct {
	Prompt  string          `json:"prompt"`
	History json.RawMessage `json:"conversation_history"`
	Model   string          `json:"model"`
}

// SendMessage handles POST /conversations/:id/messages
func SendMessage(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid conversation ID")
		}

		var req SendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		result, err := svc.Chat.ProcessTurn(c.Context(), services.TurnRequest{
			ConversationID: id,
			Message:        req.Message,
			Model:          req.Model,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
		})
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(result)
	}
}

// ChatCompletions handles POST /chat/completions
func ChatCompletions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CompletionRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		result, err := svc.Chat.Complete(c.Context(), req.Prompt, req.History, req.Model)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(result)
	}
}

// VoiceChat handles the multipart POST /chat: file, conversation_id,
// voice_id and model_id.
func VoiceChat(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "An audio file is required")
		}
		f, err := file.Open()
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		defer f.Close()
		audio, err := io.ReadAll(f)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}

		req := services.VoiceRequest{
			Audio:       audio,
			ContentType: file.Header.Get("Content-Type"),
			VoiceID:     c.FormValue("voice_id"),
			ModelID:     c.FormValue("model_id"),
		}
		if raw := c.FormValue("conversation_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return badRequest(c, "Invalid conversation ID")
			}
			req.ConversationID = &id
		}

		result, err := svc.Voice.Process(c.Context(), req)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(result)
	}
}
