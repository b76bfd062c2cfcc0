package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nijaru/vidqa/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Routes struct {
	Videos    *VideoHandler
	Queries   *QueryHandler
	DB        Pinger
	JWTSecret []byte
}

func Register(app *fiber.App, r Routes) {
	app.Get("/health", Health(r.DB))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", middleware.Auth(r.JWTSecret))
	api.Post("/videos", r.Videos.Create)
	api.Get("/videos/status", r.Videos.Statuses)
	api.Get("/videos/:id", r.Videos.Get)
	api.Get("/videos/:id/messages", r.Queries.Messages)
	api.Post("/videos/:id/qa", r.Queries.Ask)
	api.Get("/videos/:id/quiz", r.Queries.Quiz)
}
