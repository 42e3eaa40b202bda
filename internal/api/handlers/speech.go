package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxmind/voxmind-backend/internal/services"
)

// TTSOnly synthesizes text without a conversation
func TTSOnly(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Text    string `json:"text"`
			VoiceID string `json:"voice_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		if req.Text == "" {
			return badRequest(c, "Text is required")
		}

		result, err := svc.Voice.Speak(c.Context(), req.Text, req.VoiceID)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(result)
	}
}

// AvailableVoices lists the text-to-speech voices
func AvailableVoices(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		voices, err := svc.Voice.Voices(c.Context())
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		return c.JSON(fiber.Map{
			"voices": voices,
		})
	}
}

// GetAudio serves stored audio
func GetAudio(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c, "id")
		if !ok {
			return badRequest(c, "Invalid audio ID")
		}

		audio, err := svc.Audio.Get(c.Context(), id)
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		c.Set(fiber.HeaderContentType, audio.ContentType)
		return c.Send(audio.Data)
	}
}
