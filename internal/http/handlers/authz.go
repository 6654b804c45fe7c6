package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/services"
)

const sessionKey = "session"

func ensureSID(c *fiber.Ctx, secure bool) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   secure,
		})
	}
	return sid
}

func clearSID(c *fiber.Ctx, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     "sid",
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   secure,
		Expires:  time.Now().Add(-1 * time.Hour),
	})
}

// AttachSession resolves the sid cookie once per request. Handlers read the
// result through sessionOf.
func AttachSession(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Cookies("sid")
		sess := domain.AnonymousSession(sid)
		if sid != "" {
			cur, err := auth.Current(c.UserContext(), sid)
			if err != nil {
				applog.Error(c, "auth.session.resolve.fail", err, nil)
			} else {
				sess = cur
			}
		}
		c.Locals(sessionKey, sess)
		if !sess.Anonymous() {
			c.Locals("user_id", sess.UID)
		}
		return c.Next()
	}
}

func sessionOf(c *fiber.Ctx) domain.Session {
	if s, ok := c.Locals(sessionKey).(domain.Session); ok {
		return s
	}
	return domain.AnonymousSession(c.Cookies("sid"))
}

// RequireKind lets through sessions of the given kinds. Anonymous callers get
// 401; signed-in callers of another kind get 403 and a security log entry.
func RequireKind(area string, kinds ...domain.SessionKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess := sessionOf(c)
		if sess.Anonymous() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "sign in required"})
		}
		for _, k := range kinds {
			if sess.Kind == k {
				return c.Next()
			}
		}
		applog.Security(c, "access.denied."+area, map[string]any{"session_kind": string(sess.Kind)})
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
	}
}
