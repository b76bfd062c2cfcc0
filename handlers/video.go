package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nijaru/vidqa/errors"
	"github.com/nijaru/vidqa/middleware"
	"github.com/nijaru/vidqa/models"
	"github.com/nijaru/vidqa/services/video"
)

type VideoHandler struct {
	service video.Service
}

func NewVideoHandler(service video.Service) *VideoHandler {
	return &VideoHandler{service: service}
}

// Create accepts either a multipart "video" file or a "youtube_url" form
// field. The video is queued for processing before the response is sent.
func (h *VideoHandler) Create(c *fiber.Ctx) error {
	const op = "VideoHandler.Create"

	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	var v *models.Video
	if file, ferr := c.FormFile("video"); ferr == nil {
		f, err := file.Open()
		if err != nil {
			return errors.InvalidInput(op, err, "Failed to read uploaded file")
		}
		defer f.Close()

		v, err = h.service.Upload(c.UserContext(), ownerID, file.Filename, f)
		if err != nil {
			return err
		}
	} else if url := c.FormValue("youtube_url"); url != "" {
		v, err = h.service.FetchURL(c.UserContext(), ownerID, url)
		if err != nil {
			return err
		}
	} else {
		return errors.InvalidInput(op, nil, "No video file or URL provided")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    models.NewVideoResponse(v, ""),
	})
}

func (h *VideoHandler) Statuses(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	statuses, err := h.service.Statuses(c.UserContext(), ownerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"videos":  statuses,
	})
}

func (h *VideoHandler) Get(c *fiber.Ctx) error {
	ownerID, err := middleware.UserID(c)
	if err != nil {
		return err
	}

	v, accessURL, err := h.service.Get(c.UserContext(), ownerID, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    models.NewVideoResponse(v, accessURL),
	})
}
