package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"onsalenow/internal/catalog"
	"onsalenow/internal/log"
	"onsalenow/internal/repos"
	"onsalenow/internal/services"
	"onsalenow/internal/validate"
)

type ProductHandler struct {
	Catalog   *services.CatalogService
	PublicURL string
}

// GET /product/:id renders the deep-link page opened from a notification.
func (h *ProductHandler) Page(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "This item is no longer available"})
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if errors.Is(err, repos.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "This item is no longer available"})
	}
	if err != nil {
		log.Error(c, "product.page.fail", err, map[string]any{"product_id": id})
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load this item. Please retry."})
	}
	return render(c, "product", fiber.Map{
		"P":         p,
		"OnSale":    catalog.IsOnSale(*p),
		"CanonURL":  h.PublicURL + "/product/" + p.ID,
		"HasSizes":  len(p.Sizes) > 0,
		"SizesText": strings.Join(p.Sizes, ", "),
	})
}

// GET /api/v1/products[?onSale=true]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	ps, err := h.Catalog.List(c.UserContext(), c.QueryBool("onSale", false))
	if err != nil {
		return respondErr(c, "product.list", err)
	}
	return c.JSON(fiber.Map{"products": ps, "count": len(ps)})
}

// GET /api/v1/products/:id
func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return respondErr(c, "product.get", err)
	}
	return c.JSON(p)
}

// GET /api/v1/categories/:name/products
func (h *ProductHandler) ByCategory(c *fiber.Ctx) error {
	res, err := h.Catalog.ByCategory(c.UserContext(), validate.Q(c.Params("name")))
	if err != nil {
		return respondErr(c, "product.category", err)
	}
	return c.JSON(res)
}

// GET /api/v1/brands/:name/products[?partial=false]
func (h *ProductHandler) ByBrand(c *fiber.Ctx) error {
	res, err := h.Catalog.ByBrand(c.UserContext(), validate.Q(c.Params("name")), c.QueryBool("partial", true))
	if err != nil {
		return respondErr(c, "product.brand", err)
	}
	return c.JSON(res)
}

// GET /api/v1/seller/products
func (h *ProductHandler) Mine(c *fiber.Ctx) error {
	ps, err := h.Catalog.ForSeller(c.UserContext(), sessionOf(c).UID)
	if err != nil {
		return respondErr(c, "seller.products.list", err)
	}
	return c.JSON(fiber.Map{"products": ps, "count": len(ps)})
}

// POST /api/v1/seller/products
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in services.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	p, err := h.Catalog.Create(c.UserContext(), sessionOf(c), in)
	if err != nil {
		return respondErr(c, "seller.products.create", err)
	}
	c.Status(fiber.StatusCreated)
	log.Audit(c, "seller.products.create", map[string]any{"product_id": p.ID, "brand": p.Brand, "category": p.Category})
	return c.JSON(p)
}

// PATCH /api/v1/seller/products/:id
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	var patch services.ProductPatch
	if err := c.BodyParser(&patch); err != nil {
		return badBody(c)
	}
	p, err := h.Catalog.Update(c.UserContext(), sessionOf(c), c.Params("id"), patch)
	if err != nil {
		return respondErr(c, "seller.products.update", err)
	}
	log.Audit(c, "seller.products.update", map[string]any{"product_id": p.ID})
	return c.JSON(p)
}

// DELETE /api/v1/seller/products/:id and /api/v1/admin/products/:id
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Catalog.Delete(c.UserContext(), sessionOf(c), id); err != nil {
		return respondErr(c, "products.delete", err)
	}
	c.Status(fiber.StatusNoContent)
	log.Audit(c, "products.delete", map[string]any{"product_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

type SearchHandler struct {
	Catalog *services.CatalogService
}

// GET /api/v1/search?q=&priceRange=&sizes=&categories=
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	q := validate.Q(c.Query("q"))
	ps, err := h.Catalog.Search(c.UserContext(), q, c.Query("priceRange"), splitList(c.Query("sizes")), splitList(c.Query("categories")))
	if err != nil {
		var ve validate.Errors
		if errors.As(err, &ve) {
			log.Security(c, "validation.fail", map[string]any{"field": "priceRange", "value": c.Query("priceRange")})
		}
		return respondErr(c, "search", err)
	}
	return c.JSON(fiber.Map{"q": q, "products": ps, "count": len(ps)})
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
