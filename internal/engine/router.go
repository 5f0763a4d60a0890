package engine

import "github.com/gofiber/fiber/v2"

// RegisterDynamicRoutes mounts the generic entity CRUD routes.
func RegisterDynamicRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api", middleware...)
	api.Get("/:entity", h.List)
	api.Post("/:entity", h.Create)
	api.Get("/:entity/:id", h.GetByID)
	api.Put("/:entity/:id", h.Update)
	api.Delete("/:entity/:id", h.Delete)
}
