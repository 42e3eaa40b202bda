package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxmind/voxmind-backend/internal/keys"
	"github.com/voxmind/voxmind-backend/internal/services"
)

// APIKeySubmission carries provider keys; empty fields leave a key unchanged.
type APIKeySubmission struct {
	HuggingFaceToken string `json:"huggingface_token"`
	OpenAIAPIKey     string `json:"openai_api_key"`
	ElevenLabsAPIKey string `json:"elevenlabs_api_key"`
}

// SubmitAPIKeys stores provider keys for the application to use
func SubmitAPIKeys(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req APIKeySubmission
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		err := svc.Keys.Submit(c.Context(), map[string]string{
			keys.HuggingFace: req.HuggingFaceToken,
			keys.OpenAI:      req.OpenAIAPIKey,
			keys.ElevenLabs:  req.ElevenLabsAPIKey,
		})
		if err != nil {
			return respondError(c, svc.Logger, err)
		}
		svc.Voice.ForgetVoices()

		return c.JSON(fiber.Map{
			"status":       "success",
			"message":      "API keys have been updated",
			"all_keys_set": svc.Keys.Status().AllKeysSet,
		})
	}
}

// APIKeyStatus reports which provider keys are set
func APIKeyStatus(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Keys.Status())
	}
}

// ResetAPIKeys drops every submitted provider key
func ResetAPIKeys(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Keys.Reset(c.Context()); err != nil {
			return respondError(c, svc.Logger, err)
		}
		svc.Voice.ForgetVoices()
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "All API keys have been reset",
		})
	}
}
