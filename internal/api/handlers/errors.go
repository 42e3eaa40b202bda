package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/keys"
	"github.com/voxmind/voxmind-backend/internal/providers"
	"github.com/voxmind/voxmind-backend/internal/services"
	"github.com/voxmind/voxmind-backend/internal/speech"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrAudioNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrInvalidModel),
		errors.Is(err, services.ErrInvalidContentType),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrEmptyAudio),
		errors.Is(err, keys.ErrUnknownKey):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrAudioTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, providers.ErrMissingAPIKey),
		errors.Is(err, speech.ErrMissingAPIKey),
		errors.Is(err, providers.ErrCircuitOpen):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, speech.ErrUnauthorized),
		errors.Is(err, providers.ErrEmptyCompletion):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error": ...} with the mapped status. Internal errors
// are logged and hidden from the client.
func respondError(c *fiber.Ctx, logger logrus.FieldLogger, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": clientMessage(err),
	})
}

func clientMessage(err error) string {
	if statusFor(err) == fiber.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}

// paramID parses a UUID route parameter.
func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
