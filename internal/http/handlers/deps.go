package handlers

import (
	"onsalenow/internal/services"
)

type Deps struct {
	Auth    *services.AuthService
	Invites *services.InviteService
	Catalog *services.CatalogService
	Subs    *services.SubscriptionService
	Orders  *services.OrderService
	Sellers *services.SellerService

	PublicURL string
	// Secure marks the session cookie Secure (production behind HTTPS).
	Secure bool
}
