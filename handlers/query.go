package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/middleware"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/services/query"
)

type QueryHandler struct {
	service query.Service
}

func NewQueryHandler(service query.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

func (h *QueryHandler) Ask(c *fiber.Ctx) error {
	const op = "QueryHandler.Ask"

	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var req models.QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.InvalidInput(op, err, "Invalid request body")
	}
	if req.Question == "" {
		return errors.InvalidInput(op, nil, "No question provided")
	}

	answer, err := h.service.Ask(c.UserContext(), ownerID, c.Params("id"), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}

func (h *QueryHandler) Quiz(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	quiz, err := h.service.GenerateQuiz(c.UserContext(), ownerID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(quiz)
}

func (h *QueryHandler) Messages(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	messages, err := h.service.History(c.UserContext(), ownerID, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    messages,
	})
}
