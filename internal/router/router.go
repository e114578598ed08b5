package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	GradingSessionHandler *handler.GradingSessionHandler
	GradingRecordHandler  *handler.GradingRecordHandler
	GradingReportHandler  *handler.GradingReportHandler
	ActivityHandler       *handler.ActivityHandler
	SeedHandler           *handler.SeedHandler
	HealthHandler         fiber.Handler
	JWTMiddleware         fiber.Handler
	AIRateLimit           fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	health := deps.HealthHandler
	if health == nil {
		health = handler.HealthCheck(cfg, nil, nil)
	}
	api.Get("/health", health)

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	grading := api.Group("/grading", jwtMiddleware, middleware.RequireGrader())

	var aiMiddlewares []fiber.Handler
	if deps.AIRateLimit != nil {
		aiMiddlewares = append(aiMiddlewares, deps.AIRateLimit)
	}

	if deps.GradingSessionHandler != nil {
		deps.GradingSessionHandler.Register(grading)
		deps.GradingSessionHandler.RegisterAIScoring(grading, aiMiddlewares...)
	}
	if deps.GradingRecordHandler != nil {
		deps.GradingRecordHandler.Register(grading)
		deps.GradingRecordHandler.RegisterAIScoring(grading, aiMiddlewares...)
	}
	if deps.GradingReportHandler != nil {
		deps.GradingReportHandler.Register(grading)
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(grading)
	}
}
