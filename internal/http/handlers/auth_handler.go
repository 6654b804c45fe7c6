package handlers

import (
	"github.com/gofiber/fiber/v2"

	"onsalenow/internal/domain"
	"onsalenow/internal/log"
	"onsalenow/internal/services"
	"onsalenow/internal/validate"
)

type AuthHandler struct {
	Auth   *services.AuthService
	Secure bool
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func sessionView(s domain.Session) fiber.Map {
	m := fiber.Map{"kind": s.Kind}
	if s.Anonymous() {
		return m
	}
	m["uid"] = s.UID
	m["email"] = s.Email
	m["pending"] = s.IsPending()
	switch s.Kind {
	case domain.KindBuyer:
		m["profile"] = s.Buyer
	case domain.KindSeller:
		m["profile"] = s.Seller
	case domain.KindAdmin:
		m["profile"] = s.Admin
	}
	return m
}

// POST /api/v1/auth/buyers
func (h *AuthHandler) RegisterBuyer(c *fiber.Ctx) error {
	var in struct {
		credentials
		services.BuyerProfile
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sess, err := h.Auth.RegisterBuyer(c.UserContext(), ensureSID(c, h.Secure), in.Email, in.Password, in.BuyerProfile)
	if err != nil {
		log.Security(c, "auth.register.fail", map[string]any{"email": in.Email, "role": "buyer"})
		return respondErr(c, "auth.register", err)
	}
	c.Status(fiber.StatusCreated)
	log.Audit(c, "auth.register.success", map[string]any{"uid": sess.UID, "role": "buyer"})
	return c.JSON(sessionView(sess))
}

// POST /api/v1/auth/sellers
func (h *AuthHandler) RegisterSeller(c *fiber.Ctx) error {
	var in struct {
		credentials
		services.SellerProfile
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sess, err := h.Auth.RegisterSeller(c.UserContext(), ensureSID(c, h.Secure), in.Email, in.Password, in.SellerProfile)
	if err != nil {
		log.Security(c, "auth.register.fail", map[string]any{"email": in.Email, "role": "seller"})
		return respondErr(c, "auth.register", err)
	}
	c.Status(fiber.StatusCreated)
	log.Audit(c, "auth.register.success", map[string]any{"uid": sess.UID, "role": "seller"})
	return c.JSON(sessionView(sess))
}

// POST /api/v1/auth/admins
func (h *AuthHandler) RegisterAdmin(c *fiber.Ctx) error {
	var in struct {
		credentials
		Name   string `json:"name"`
		Invite string `json:"invite"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sess, err := h.Auth.RegisterAdmin(c.UserContext(), ensureSID(c, h.Secure), in.Email, in.Password, in.Name, in.Invite)
	if err != nil {
		log.Security(c, "auth.register.admin.fail", map[string]any{"email": in.Email})
		return respondErr(c, "auth.register.admin", err)
	}
	c.Status(fiber.StatusCreated)
	log.Audit(c, "auth.register.admin.success", map[string]any{"uid": sess.UID})
	return c.JSON(sessionView(sess))
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		credentials
		Role domain.SessionKind `json:"role"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if _, ok := validate.Email(in.Email); !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": in.Email, "reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}
	if in.Role == "" {
		in.Role = domain.KindBuyer
	}

	sess, err := h.Auth.Login(c.UserContext(), ensureSID(c, h.Secure), in.Email, in.Password, in.Role)
	if err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": in.Email, "role": string(in.Role), "reason": err.Error()})
		return respondErr(c, "auth.login", err)
	}
	c.Locals("user_id", sess.UID)
	log.Audit(c, "auth.login.success", map[string]any{"email": sess.Email, "role": string(sess.Kind)})
	return c.JSON(sessionView(sess))
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := c.Cookies("sid")
	if sid != "" {
		if err := h.Auth.Logout(c.UserContext(), sid); err != nil {
			return respondErr(c, "auth.logout", err)
		}
	}
	clearSID(c, h.Secure)
	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(sessionView(sessionOf(c)))
}

// PATCH /api/v1/me
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	var partial map[string]any
	if err := c.BodyParser(&partial); err != nil {
		return badBody(c)
	}
	sess, err := h.Auth.UpdateProfile(c.UserContext(), sessionOf(c), partial)
	if err != nil {
		return respondErr(c, "profile.update", err)
	}
	log.Audit(c, "profile.update", map[string]any{"fields": len(partial)})
	return c.JSON(sessionView(sess))
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
}
