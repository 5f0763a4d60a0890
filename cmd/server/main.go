package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"meteor-store/internal/auth"
	"meteor-store/internal/config"
	"meteor-store/internal/engine"
	"meteor-store/internal/metadata"
	"meteor-store/internal/store"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, schema: %s)", cfg.Server.Port, cfg.Schema.Path)

	// 2. Create registry and load schema definitions
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(cfg.Schema.Path, reg); err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}

	// 3. Create the in-memory store and factory
	st := store.New()
	factory := engine.NewFactory(st, reg)

	// 4. Bootstrap admin user
	authHandler := auth.NewAuthHandler(st, cfg.JWTSecret)
	if err := authHandler.Bootstrap(cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatalf("Failed to bootstrap admin user: %v", err)
	}

	// 5. Load seed data through the factory
	if cfg.Schema.SeedPath != "" {
		if err := engine.LoadSeed(cfg.Schema.SeedPath, factory); err != nil {
			log.Printf("WARN: Failed to load seed data: %v", err)
		}
	}

	// 6. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 7. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 8. Auth routes (before middleware, no auth required)
	auth.RegisterAuthRoutes(app, authHandler)

	// 9. Dynamic entity routes (auth required)
	authMW := auth.AuthMiddleware(cfg.JWTSecret)
	engineHandler := engine.NewHandler(factory, reg)
	engine.RegisterDynamicRoutes(app, engineHandler, authMW)

	// 10. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
