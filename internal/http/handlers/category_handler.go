package handlers

import (
	"github.com/gofiber/fiber/v2"

	"onsalenow/internal/domain"
	"onsalenow/internal/services"
)

// CategoryHandler lists the subscribable topics of the live catalog.
type CategoryHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/categories
func (h *CategoryHandler) Categories(c *fiber.Ctx) error {
	return h.topics(c, domain.TopicCategory)
}

// GET /api/v1/brands
func (h *CategoryHandler) Brands(c *fiber.Ctx) error {
	return h.topics(c, domain.TopicBrand)
}

func (h *CategoryHandler) topics(c *fiber.Ctx, kind domain.TopicKind) error {
	ts, err := h.Catalog.Topics(c.UserContext(), kind)
	if err != nil {
		return respondErr(c, "catalog.topics", err)
	}
	return c.JSON(fiber.Map{"kind": kind, "topics": ts, "count": len(ts)})
}
