package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/services"
	"onsalenow/internal/validate"
)

type AdminHandler struct {
	Sellers *services.SellerService
	Invites *services.InviteService
}

// GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.Sellers.Dashboard(c.UserContext())
	if err != nil {
		return respondErr(c, "admin.dashboard", err)
	}
	return c.JSON(d)
}

// GET /api/v1/admin/sellers[?status=pending]
func (h *AdminHandler) ListSellers(c *fiber.Ctx) error {
	list, err := h.Sellers.ListSellers(c.UserContext(), domain.SellerStatus(c.Query("status")))
	if err != nil {
		return respondErr(c, "admin.sellers.list", err)
	}
	return c.JSON(fiber.Map{"sellers": list, "count": len(list)})
}

// POST /api/v1/admin/sellers/:uid/status
//
// The status write stands when reconciliation is incomplete; the response
// carries the batch result and 207 so the caller can retry reconcile.
func (h *AdminHandler) SetSellerStatus(c *fiber.Ctx) error {
	var in struct {
		Status domain.SellerStatus `json:"status"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	uid := c.Params("uid")
	seller, res, err := h.Sellers.SetStatus(c.UserContext(), uid, in.Status)
	if err != nil && !errors.Is(err, services.ErrReconcileIncomplete) {
		return respondErr(c, "admin.sellers.status", err)
	}
	if err != nil {
		c.Status(fiber.StatusMultiStatus)
	}
	applog.Audit(c, "admin.sellers.status", map[string]any{
		"target": uid, "new_status": string(in.Status), "updated": res.Updated, "failed": len(res.Failed),
	})
	return c.JSON(fiber.Map{"seller": seller, "reconcile": res})
}

// POST /api/v1/admin/sellers/:uid/reconcile
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	uid := c.Params("uid")
	res, err := h.Sellers.Reconcile(c.UserContext(), uid)
	if err != nil && !errors.Is(err, services.ErrReconcileIncomplete) {
		return respondErr(c, "admin.sellers.reconcile", err)
	}
	if err != nil {
		c.Status(fiber.StatusMultiStatus)
	}
	applog.Audit(c, "admin.sellers.reconcile", map[string]any{"target": uid, "updated": res.Updated, "failed": len(res.Failed)})
	return c.JSON(res)
}

// GET /api/v1/admin/buyers
func (h *AdminHandler) Buyers(c *fiber.Ctx) error {
	list, err := h.Sellers.ListBuyers(c.UserContext())
	if err != nil {
		return respondErr(c, "admin.buyers.list", err)
	}
	return c.JSON(fiber.Map{"buyers": list, "count": len(list)})
}

// POST /api/v1/admin/buyers/:uid/status
func (h *AdminHandler) SetBuyerStatus(c *fiber.Ctx) error {
	var in struct {
		Status domain.BuyerStatus `json:"status"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	uid := c.Params("uid")
	b, err := h.Sellers.SetBuyerStatus(c.UserContext(), uid, in.Status)
	if err != nil {
		return respondErr(c, "admin.buyers.status", err)
	}
	applog.Audit(c, "admin.buyers.status", map[string]any{"target": uid, "new_status": string(in.Status)})
	return c.JSON(b)
}

// POST /api/v1/admin/invites
func (h *AdminHandler) Invite(c *fiber.Ctx) error {
	var in struct {
		Email      string `json:"email"`
		TTLMinutes int    `json:"ttlMinutes"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	email, ok := validate.Email(in.Email)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "email"})
		return respondErr(c, "admin.invites", validate.Errors{"email": "invalid email"})
	}
	token, exp, err := h.Invites.Mint(email, time.Duration(in.TTLMinutes)*time.Minute)
	if err != nil {
		return respondErr(c, "admin.invites", err)
	}
	c.Status(fiber.StatusCreated)
	applog.Audit(c, "admin.invites.mint", map[string]any{"email": email, "expires": exp})
	return c.JSON(fiber.Map{"token": token, "expiresAt": exp})
}
