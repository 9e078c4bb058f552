package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/city-temps/internal/api/http"
	"github.com/i474232898/city-temps/internal/config"
	"github.com/i474232898/city-temps/internal/store"
	"github.com/i474232898/city-temps/internal/weather"
	"github.com/i474232898/city-temps/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.InitLogger(cfg); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zap.L().Sync() //nolint:errcheck

	// SQLite store, migrated at startup.
	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		zap.L().Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		zap.L().Fatal("failed to migrate store", zap.Error(err))
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	client := weather.NewClient(httpClient, cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL)
	service := weather.NewService(st, client)

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "city-temps",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "city-temps",
		})
	})

	// Pages, static assets and API routes.
	web.Register(app)
	httpapi.RegisterRoutes(app, st, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zap.L().Error("fiber server stopped", zap.Error(err))
		}
	}()
	zap.L().Info("listening", zap.String("port", cfg.Port))

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zap.L().Error("error during shutdown", zap.Error(err))
	}
}
