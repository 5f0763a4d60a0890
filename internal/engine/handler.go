package engine

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"meteor-store/internal/metadata"
)

type Handler struct {
	factory  *Factory
	registry *metadata.Registry
}

func NewHandler(f *Factory, reg *metadata.Registry) *Handler {
	return &Handler{factory: f, registry: reg}
}

// List handles GET /api/:entity
func (h *Handler) List(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return h.respondAppError(c, err)
	}

	opts, err := ParseQueryParams(c, entity)
	if err != nil {
		return h.respondAppError(c, err)
	}

	records, total, err := h.factory.List(entity.Name, *opts)
	if err != nil {
		return h.respondAppError(c, err)
	}

	data := make([]map[string]any, len(records))
	for i, rec := range records {
		data[i] = rec.Snapshot()
	}

	return c.JSON(fiber.Map{
		"data": data,
		"meta": fiber.Map{
			"page":     opts.Page,
			"per_page": opts.PerPage,
			"total":    total,
		},
	})
}

// GetByID handles GET /api/:entity/:id
func (h *Handler) GetByID(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return h.respondAppError(c, err)
	}

	rec, err := h.factory.Fetch(entity.Name, c.Params("id"))
	if err != nil {
		return h.respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"data": rec.Snapshot()})
}

// Create handles POST /api/:entity
func (h *Handler) Create(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return h.respondAppError(c, err)
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	rec, err := h.factory.Create(entity.Name, body)
	if err != nil {
		return h.respondAppError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"data": rec.Snapshot()})
}

// Update handles PUT /api/:entity/:id
func (h *Handler) Update(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return h.respondAppError(c, err)
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body"))
	}

	rec, err := h.factory.Update(entity.Name, c.Params("id"), body)
	if err != nil {
		return h.respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"data": rec.Snapshot()})
}

// Delete handles DELETE /api/:entity/:id
func (h *Handler) Delete(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return h.respondAppError(c, err)
	}

	id := c.Params("id")
	if err := h.factory.Delete(entity.Name, id); err != nil {
		return h.respondAppError(c, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

func (h *Handler) respondAppError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return respondError(c, appErr)
	}
	return err
}

func respondError(c *fiber.Ctx, appErr *AppError) error {
	return c.Status(appErr.Status).JSON(ErrorResponse{Error: appErr})
}
