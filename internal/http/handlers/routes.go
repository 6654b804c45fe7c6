package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"onsalenow/internal/domain"
	applog "onsalenow/internal/log"
	"onsalenow/internal/metrics"
)

// Limits are the request budgets per client IP. Zero values take the defaults.
type Limits struct {
	Global     int
	Login      int
	LoginEvery time.Duration
	Search     int
	BodyBytes  int
	AccessLog  bool
}

func (l Limits) withDefaults() Limits {
	if l.Global == 0 {
		l.Global = 120
	}
	if l.Login == 0 {
		l.Login = 5
	}
	if l.LoginEvery == 0 {
		l.LoginEvery = 10 * time.Minute
	}
	if l.Search == 0 {
		l.Search = 30
	}
	if l.BodyBytes == 0 {
		l.BodyBytes = 1 << 20 // 1 MiB
	}
	return l
}

// NewApp builds the fiber app with middleware and every route mounted.
func NewApp(d *Deps, viewsDir string, lim Limits) *fiber.App {
	lim = lim.withDefaults()

	engine := html.New(viewsDir, ".html")
	app := fiber.New(fiber.Config{
		Views:        engine,
		BodyLimit:    lim.BodyBytes,
		UnescapePath: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				applog.Error(c, "server.error", err, nil)
				return c.Status(code).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
			}
			return c.Status(code).JSON(fiber.Map{"error": statusText(code)})
		},
	})

	app.Use(requestid.New())
	if lim.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(metrics.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        lim.Global,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}))
	app.Use(AttachSession(d.Auth))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", metrics.Handler())

	products := &ProductHandler{Catalog: d.Catalog, PublicURL: d.PublicURL}
	search := &SearchHandler{Catalog: d.Catalog}
	topics := &CategoryHandler{Catalog: d.Catalog}
	auth := &AuthHandler{Auth: d.Auth, Secure: d.Secure}
	subs := &SubscriptionHandler{Subs: d.Subs}
	orders := &OrderHandler{Orders: d.Orders}
	admin := &AdminHandler{Sellers: d.Sellers, Invites: d.Invites}

	app.Get("/product", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "This item is no longer available"})
	})
	app.Get("/product/:id", products.Page)

	api := app.Group("/api/v1")
	api.Get("/products", products.List)
	api.Get("/products/:id", products.Get)
	api.Get("/categories", topics.Categories)
	api.Get("/categories/:name/products", products.ByCategory)
	api.Get("/brands", topics.Brands)
	api.Get("/brands/:name/products", products.ByBrand)
	api.Get("/search", limiter.New(limiter.Config{
		Max:          lim.Search,
		Expiration:   time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|search" },
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.search.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	}), search.Search)

	api.Post("/auth/buyers", auth.RegisterBuyer)
	api.Post("/auth/sellers", auth.RegisterSeller)
	api.Post("/auth/admins", auth.RegisterAdmin)
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:          lim.Login,
		Expiration:   lim.LoginEvery,
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() + "|login" },
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
		},
	}), auth.Login)
	api.Post("/auth/logout", auth.Logout)

	signedIn := RequireKind("me", domain.KindBuyer, domain.KindSeller, domain.KindAdmin)
	api.Get("/me", signedIn, auth.Me)
	api.Patch("/me", signedIn, auth.UpdateMe)

	buyer := RequireKind("buyer", domain.KindBuyer)
	api.Get("/subscriptions", buyer, subs.List)
	api.Post("/subscriptions", buyer, subs.Subscribe)
	api.Post("/subscriptions/toggle", buyer, subs.Toggle)
	api.Delete("/subscriptions/:kind/:topic", buyer, subs.Unsubscribe)
	api.Post("/orders", buyer, orders.Place)
	api.Get("/orders", buyer, orders.Mine)
	api.Get("/orders/:id", buyer, orders.Get)

	seller := api.Group("/seller", RequireKind("seller", domain.KindSeller))
	seller.Get("/products", products.Mine)
	seller.Post("/products", products.Create)
	seller.Patch("/products/:id", products.Update)
	seller.Delete("/products/:id", products.Delete)
	seller.Get("/orders", orders.ForSeller)
	seller.Get("/orders/:id", orders.Get)
	seller.Patch("/orders/:id", orders.UpdateStatus)

	adm := api.Group("/admin", RequireKind("admin", domain.KindAdmin))
	adm.Get("/dashboard", admin.Dashboard)
	adm.Get("/sellers", admin.ListSellers)
	adm.Post("/sellers/:uid/status", admin.SetSellerStatus)
	adm.Post("/sellers/:uid/reconcile", admin.Reconcile)
	adm.Get("/buyers", admin.Buyers)
	adm.Post("/buyers/:uid/status", admin.SetBuyerStatus)
	adm.Get("/orders", orders.All)
	adm.Get("/orders/:id", orders.Get)
	adm.Patch("/orders/:id", orders.UpdateStatus)
	adm.Delete("/products/:id", products.Delete)
	adm.Post("/invites", admin.Invite)
	adm.Delete("/users/:uid/subscriptions", subs.Purge)

	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Page not found"})
	})
	return app
}

func statusText(code int) string {
	switch code {
	case fiber.StatusRequestEntityTooLarge:
		return "request body too large"
	case fiber.StatusNotFound:
		return "not found"
	case fiber.StatusMethodNotAllowed:
		return "method not allowed"
	}
	return "bad request"
}
