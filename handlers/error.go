package handlers

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"
	"github.com/nijaru/vidqa/errors"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders AppErrors with their code and message. Anything
// else is reported as an internal error without detail.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var appErr *errors.AppError
		var fiberErr *fiber.Error
		switch {
		case stderrors.As(err, &appErr):
			code = appErr.Code
			message = appErr.Message
		case stderrors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		}

		requestID, _ := c.Locals("requestid").(string)
		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       c.Path(),
			"method":     c.Method(),
			"status":     code,
		}).WithError(err)
		if code >= fiber.StatusInternalServerError {
			entry.Error("Request error")
		} else {
			entry.Warn("Request rejected")
		}

		return c.Status(code).JSON(fiber.Map{
			"success":    false,
			"error":      message,
			"request_id": requestID,
		})
	}
}
