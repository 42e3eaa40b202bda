package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// AdminAudit logs every request on admin routes with the acting subject.
// Request bodies are never logged; they carry provider keys.
func AdminAudit(logger logrus.FieldLogger) fiber.Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		entry := logger.WithFields(logrus.Fields{
			"action":      determineAction(c.Method(), c.Path()),
			"path":        c.Path(),
			"subject":     AdminSubject(c),
			"ip":          c.IP(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil || status >= fiber.StatusBadRequest {
			entry.WithError(err).Warn("Admin request failed")
		} else {
			entry.Info("Admin request")
		}
		return err
	}
}

// determineAction names the admin action from method and path
func determineAction(method, path string) string {
	resource := path
	if i := strings.LastIndex(strings.TrimSuffix(path, "/"), "/"); i >= 0 {
		resource = strings.TrimSuffix(path, "/")[i+1:]
	}

	switch method {
	case fiber.MethodGet:
		return "read." + resource
	case fiber.MethodDelete:
		return "delete." + resource
	default:
		return "write." + resource
	}
}
