package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voxmind/voxmind-backend/internal/auth"
)

const adminSubjectKey = "admin_subject"

// AdminRequired guards admin routes with an HS256 bearer token. When no JWT
// secret is configured the routes are open.
func AdminRequired(jwtService *auth.JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if jwtService == nil || !jwtService.Enabled() {
			return c.Next()
		}

		token := auth.ExtractTokenFromBearer(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		claims, err := jwtService.ValidateAdminToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(adminSubjectKey, claims.Subject)
		return c.Next()
	}
}

// AdminSubject returns the subject of the validated admin token, if any.
func AdminSubject(c *fiber.Ctx) string {
	if subject, ok := c.Locals(adminSubjectKey).(string); ok {
		return subject
	}
	return ""
}
