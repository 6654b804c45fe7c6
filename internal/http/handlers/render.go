package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "onsalenow/internal/log"
	"onsalenow/internal/repos"
	"onsalenow/internal/services"
	"onsalenow/internal/validate"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if s := sessionOf(c); !s.Anonymous() {
		data["User"] = s.DisplayName()
	}
	return c.Render(tmpl, data)
}

// respondErr maps service errors onto HTTP statuses. Unknown errors are
// logged and answered with a generic message.
func respondErr(c *fiber.Ctx, action string, err error) error {
	var ve validate.Errors
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "fields": ve})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrProfileMissing):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	case errors.Is(err, services.ErrAccountBlocked):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrSellerNotApproved), errors.Is(err, services.ErrInviteInvalid):
		applog.Security(c, action+".denied", map[string]any{"reason": err.Error()})
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": rootMessage(err)})
	case errors.Is(err, repos.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.Is(err, services.ErrEmailExists), errors.Is(err, services.ErrOrderClosed),
		errors.Is(err, services.ErrOutOfStock), errors.Is(err, services.ErrInviteUsed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": rootMessage(err)})
	case errors.Is(err, repos.ErrUnavailable):
		applog.Error(c, action+".unavailable", err, nil)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service temporarily unavailable", "retry": true})
	}
	applog.Error(c, action+".fail", err, nil)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
}

// rootMessage is the message of the first sentinel wrapped in err.
func rootMessage(err error) string {
	for _, s := range []error{
		services.ErrForbidden, services.ErrSellerNotApproved, services.ErrInviteInvalid,
		services.ErrEmailExists, services.ErrOrderClosed, services.ErrOutOfStock, services.ErrInviteUsed,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}
