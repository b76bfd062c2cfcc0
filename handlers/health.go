package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nijaru/vidqa/errors"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports ok when the record store answers.
func Health(db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			return errors.Storage("handlers.Health", err, "Database unavailable")
		}

		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
