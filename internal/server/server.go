package server

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/plandrop/plandrop/internal/config"
	"github.com/plandrop/plandrop/internal/domain"
	"github.com/plandrop/plandrop/internal/telemetry"
)

// AppDependencies holds the dependencies required by the ops HTTP surface.
type AppDependencies struct {
	Config     *config.Config
	Store      domain.ContentStore
	Recipients domain.RecipientDirectory
}

// NewApp creates the Fiber application serving health and operational stats.
// The chat transport is the product surface; this server exists for probes
// and dashboards.
func NewApp(deps AppDependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Plandrop Distribution Engine",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(telemetry.FiberMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "plandrop",
		})
	})

	v1 := app.Group("/v1")
	v1.Get("/stats", func(c *fiber.Ctx) error {
		recipients, err := deps.Recipients.Count(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "recipient directory unavailable")
		}

		files := make(map[string]int, len(deps.Config.Categories))
		total := 0
		for _, cat := range deps.Config.Categories {
			list, err := deps.Store.List(cat.Key)
			if err != nil {
				log.Printf("[Server] stats: list %s failed: %v", cat.Key, err)
				continue
			}
			files[cat.Key] = len(list)
			total += len(list)
		}

		return c.JSON(fiber.Map{
			"recipients":     recipients,
			"categories":     len(deps.Config.Categories),
			"files_total":    total,
			"files_per_category": files,
		})
	})

	return app
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
