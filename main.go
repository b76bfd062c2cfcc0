package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nijaru/vidqa/ai"
	"github.com/nijaru/vidqa/config"
	"github.com/nijaru/vidqa/fetcher"
	"github.com/nijaru/vidqa/handlers"
	"github.com/nijaru/vidqa/logger"
	"github.com/nijaru/vidqa/middleware"
	"github.com/nijaru/vidqa/repository/sqlstore"
	"github.com/nijaru/vidqa/retry"
	"github.com/nijaru/vidqa/services/query"
	"github.com/nijaru/vidqa/services/video"
	"github.com/nijaru/vidqa/storage"
	"github.com/nijaru/vidqa/validation"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, logOutput, err := logger.NewLogger(logger.Options{
		Dir:        cfg.LogDir,
		Level:      cfg.LogLevel,
		Production: cfg.IsProduction(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	executor := retry.New(appLogger)

	gateway, err := storage.New(ctx, cfg.Storage, executor, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	backend := newBackend(ctx, cfg, appLogger)
	validator := validation.NewValidator()

	queue := video.NewJobQueue(cfg.Video.Workers, cfg.Video.QueueSize, cfg.Video.ProcessTimeout, appLogger)

	videoService := video.NewService(
		store,
		gateway,
		backend,
		fetcher.New(cfg.Fetch, cfg.TempDir, appLogger),
		queue,
		executor,
		validator,
		video.Config{
			TempDir: cfg.TempDir,
		},
		appLogger,
	)
	queryService := query.NewService(store, store, backend, executor, validator, appLogger)

	// Background runs outlive requests but stop with the process.
	queue.Start(context.WithoutCancel(ctx), videoService.Process)
	if err := videoService.Resume(ctx); err != nil {
		appLogger.WithError(err).Error("Failed to resume pending videos")
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		BodyLimit:             int(cfg.Storage.MaxUploadBytes),
		ErrorHandler:          handlers.ErrorHandler(appLogger),
		DisableStartupMessage: !cfg.Debug,
		AppName:               "vidqa",
	})

	setupMiddleware(app, cfg, logOutput)

	if !cfg.Storage.UseObjectStore() {
		app.Static(cfg.Storage.UploadURLPrefix, cfg.Storage.UploadDir)
	}

	handlers.Register(app, handlers.Routes{
		Videos:    handlers.NewVideoHandler(videoService),
		Queries:   handlers.NewQueryHandler(queryService),
		DB:        store,
		JWTSecret: []byte(cfg.JWTSecret),
	})

	go func() {
		<-ctx.Done()
		appLogger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			appLogger.WithError(err).Error("Server shutdown error")
		}
	}()

	appLogger.WithField("port", cfg.ServerPort).Info("Server starting")
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		appLogger.WithError(err).Error("Server error")
	}

	// In-flight runs are cancelled and marked failed.
	queue.Close()
	appLogger.Info("Server stopped")
}

func newBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) ai.Backend {
	if !cfg.AI.Enabled() {
		log.Warn("GOOGLE_API_KEY not set, AI features are disabled")
		return ai.Unconfigured{}
	}

	backend, err := ai.NewGemini(ctx, cfg.AI, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize AI backend, AI features are disabled")
		return ai.Unconfigured{}
	}
	return backend
}

func setupMiddleware(app *fiber.App, cfg *config.Config, logOutput io.Writer) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Debug,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: fiber.HeaderXRequestID,
		Generator: func() string {
			return uuid.New().String()
		},
	}))
	app.Use(middleware.RequestContext())

	app.Use(fiberLogger.New(logger.AccessLogConfig(logOutput)))

	if cfg.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.CORS.AllowedOrigins, ","),
			AllowMethods:     strings.Join(cfg.CORS.AllowedMethods, ","),
			AllowHeaders:     strings.Join(cfg.CORS.AllowedHeaders, ","),
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}

	if cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.RequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"success": false,
					"error":   "Rate limit exceeded",
				})
			},
		}))
	}
}
