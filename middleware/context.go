package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/nijaru/vidqa/logger"
)

// RequestContext copies the request id set by the requestid middleware
// into the user context, so services and background jobs can log it.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			c.SetUserContext(logger.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}
