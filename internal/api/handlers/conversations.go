package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/voxmind/voxmind-backend/internal/memory"
	"github.com/voxmind/voxmind-backend/internal/repository"
	"github.com/voxmind/voxmind-backend/internal/services"
)

// ConversationResponse is a conversation with its visible history
type ConversationResponse struct {
	ConversationID  uuid.UUID        `json:"conversation_id"`
	SystemPrompt    string           `json:"system_prompt"`
	VoiceID         string           `json:"voice_id"`
	STTModelID      string           `json:"stt_model_id"`
	MessageCount    int              `json:"message_count"`
	MemoryOptimized bool             `json:"memory_optimized"`
	Messages        []memory.Message `json:"messages"`
}

func newConversationResponse(c *repository.Conversation, messages []memory.Message) ConversationResponse {
	if messages == nil {
		messages = []memory.Message{}
	}
	return ConversationResponse{
		ConversationID:  c.ID,
		SystemPrompt:    c.SystemPrompt,
		VoiceID:         c.VoiceID,
		STTModelID:      c.STTModelID,
		MessageCount:    c.MessageCount,
		MemoryOptimized: c.MemoryOptimized,
		Messages:        messages,
	}
}

// CreateConversation creates a conversation with a system prompt and voice
func CreateConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req services.CreateConversationRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "Invalid request body")
			}
		}

		conversation, err := svc.Conversations.Create(c.Context(), req)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.Status(fiber.StatusCreated).JSON(newConversationResponse(conversation, nil))
	}
}

// ListConversations returns conversations with pagination
func ListConversations(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := svc.Conversations.List(c.Context(), c.QueryInt("limit", 10), c.QueryInt("skip", 0))
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(page)
	}
}

// GetConversation returns a conversation and its non-system messages
func GetConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid conversation ID")
		}

		conversation, messages, err := svc.Conversations.History(c.Context(), id)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(newConversationResponse(conversation, messages))
	}
}

// UpdateConversation changes the voice, STT model or system prompt
func UpdateConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid conversation ID")
		}

		var req struct {
			SystemPrompt *string `json:"system_prompt"`
			VoiceID      *string `json:"voice_id"`
			STTModelID   *string `json:"stt_model_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		conversation, err := svc.Conversations.Update(c.Context(), id, repository.ConversationUpdate{
			SystemPrompt: req.SystemPrompt,
			VoiceID:      req.VoiceID,
			STTModelID:   req.STTModelID,
		})
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(newConversationResponse(conversation, nil))
	}
}

// DeleteConversation deletes a conversation and its history
func DeleteConversation(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid conversation ID")
		}

		if err := svc.Conversations.Delete(c.Context(), id); err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(fiber.Map{
			"message": "Conversation " + id.String() + " deleted successfully",
		})
	}
}

// GetSummary returns the stored memory summary of a conversation
func GetSummary(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid conversation ID")
		}

		summary, err := svc.Conversations.Summary(c.Context(), id)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		if summary == nil {
			return c.JSON(fiber.Map{
				"conversation_id":  id,
				"summary":          nil,
				"memory_optimized": false,
			})
		}
		return c.JSON(fiber.Map{
			"conversation_id":  id,
			"summary":          summary.Summary,
			"updated_at":       summary.UpdatedAt,
			"memory_optimized": true,
		})
	}
}

// Summarize runs the summarizer synchronously
func Summarize(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid conversation ID")
		}
		if _, err := svc.Conversations.Get(c.Context(), id); err != nil {
			return respondError(c, svc.Logger, err)
		}

		return c.JSON(fiber.Map{
			"conversation_id": id,
			"summarized":      svc.Summarizer.Summarize(c.Context(), id),
		})
	}
}

// AvailableModels lists the speech-to-text models
func AvailableModels(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"models":        svc.Config.STT.Models,
			"default_model": svc.Config.STT.DefaultModel,
		})
	}
}

// UpdateModel sets a conversation's speech-to-text model from form fields
func UpdateModel(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.FormValue("conversation_id"))
		if err != nil {
			return badRequest(c, "Invalid conversation ID")
		}
		modelID := c.FormValue("model_id")
		if modelID == "" {
			return badRequest(c, "model_id is required")
		}

		if _, err := svc.Conversations.Update(c.Context(), id, repository.ConversationUpdate{STTModelID: &modelID}); err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(fiber.Map{
			"success":         true,
			"conversation_id": id,
			"model_id":        modelID,
			"message":         "Successfully updated model for conversation " + id.String(),
		})
	}
}
