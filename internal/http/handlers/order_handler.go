package handlers

import (
	"github.com/gofiber/fiber/v2"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

// POST /api/v1/orders
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var in struct {
		Items           []services.CheckoutItem `json:"items"`
		ShippingAddress string                  `json:"shippingAddress"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.Orders.Checkout(c.UserContext(), sessionOf(c), in.Items, in.ShippingAddress)
	if err != nil {
		return respondErr(c, "order.place", err)
	}
	c.Status(fiber.StatusCreated)
	applog.Audit(c, "order.place", map[string]any{"order_id": o.ID, "items": len(o.Items), "total": o.TotalAmount})
	return c.JSON(o)
}

// GET /api/v1/orders
func (h *OrderHandler) Mine(c *fiber.Ctx) error {
	list, err := h.Orders.ForBuyer(c.UserContext(), sessionOf(c).UID)
	if err != nil {
		return respondErr(c, "order.list", err)
	}
	return c.JSON(fiber.Map{"orders": list, "count": len(list)})
}

// GET /api/v1/orders/:id, /api/v1/seller/orders/:id and /api/v1/admin/orders/:id
func (h *OrderHandler) Get(c *fiber.Ctx) error {
	o, err := h.Orders.Get(c.UserContext(), sessionOf(c), c.Params("id"))
	if err != nil {
		return respondErr(c, "order.get", err)
	}
	return c.JSON(o)
}

// GET /api/v1/seller/orders
func (h *OrderHandler) ForSeller(c *fiber.Ctx) error {
	list, err := h.Orders.ForSeller(c.UserContext(), sessionOf(c).UID)
	if err != nil {
		return respondErr(c, "seller.orders.list", err)
	}
	return c.JSON(fiber.Map{"orders": list, "count": len(list)})
}

// GET /api/v1/admin/orders
func (h *OrderHandler) All(c *fiber.Ctx) error {
	list, err := h.Orders.All(c.UserContext())
	if err != nil {
		return respondErr(c, "admin.orders.list", err)
	}
	return c.JSON(fiber.Map{"orders": list, "count": len(list)})
}

// PATCH /api/v1/seller/orders/:id and /api/v1/admin/orders/:id
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var in struct {
		Status domain.OrderStatus `json:"status"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), sessionOf(c), c.Params("id"), in.Status)
	if err != nil {
		return respondErr(c, "order.status", err)
	}
	applog.Audit(c, "order.status", map[string]any{"order_id": o.ID, "order_status": string(o.Status)})
	return c.JSON(o)
}
