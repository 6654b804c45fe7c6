package handlers_test

import (
	"net/http"
	"testing"

	"onsalenow/internal/http/handlers"
)

func TestProductPage(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.admin("sid-a1", "root@shop.test")
	uid := h.seller("sid-s1", "zara@shop.test", "Zara", "sid-a1")
	p := h.product("sid-s1", map[string]any{
		"name": "Linen <Shirt>", "category": "Shirts", "price": "1499", "originalPrice": "1999", "sizes": []string{"S", "M"},
	})

	code, body := h.do("GET", "/product/"+p.ID, "", nil)
	if code != http.StatusOK {
		t.Fatalf("page: %d %s", code, body)
	}
	if !contains(body, "Linen &lt;Shirt&gt;") || contains(body, "Linen <Shirt>") {
		t.Fatalf("product name must be escaped: %s", body)
	}
	if !contains(body, "-25%") || !contains(body, "S, M") {
		t.Fatalf("sale details missing: %s", body)
	}

	h.do("POST", "/api/v1/admin/sellers/"+uid+"/status", "sid-a1", map[string]any{"status": "blocked"})
	code, body = h.do("GET", "/product/"+p.ID, "", nil)
	if code != http.StatusNotFound || !contains(body, "no longer available") {
		t.Fatalf("blocked page: %d %s", code, body)
	}
	if code, _ := h.do("GET", "/product/does-not-exist", "", nil); code != http.StatusNotFound {
		t.Fatalf("missing page: %d", code)
	}
}

func TestStoreOutageIsRetryableAndQuiet(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	_ = h.db.Close()

	code, body := h.do("GET", "/api/v1/products", "", nil)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d %s", code, body)
	}
	if !contains(body, `"retry":true`) {
		t.Fatalf("retry affordance missing: %s", body)
	}
	if contains(body, "sql") || contains(body, "closed") {
		t.Fatalf("internal details leaked: %s", body)
	}
}

func TestUnknownRoutes(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	code, body := h.do("GET", "/api/v1/nope", "", nil)
	if code != http.StatusNotFound || !contains(body, `"error"`) {
		t.Fatalf("api 404: %d %s", code, body)
	}
	code, body = h.do("GET", "/nope", "", nil)
	if code != http.StatusNotFound || !contains(body, "Page not found") {
		t.Fatalf("page 404: %d %s", code, body)
	}
	if code, body := h.do("GET", "/healthz", "", nil); code != http.StatusOK || !contains(body, `"ok":true`) {
		t.Fatalf("healthz: %d %s", code, body)
	}
}

func TestTopicListings(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.admin("sid-a1", "root@shop.test")
	h.seller("sid-s1", "zara@shop.test", "Zara", "sid-a1")
	h.product("sid-s1", map[string]any{"name": "Linen Shirt", "category": "Shirts", "price": "1499"})
	h.product("sid-s1", map[string]any{"name": "Oxford Shirt", "category": "shirts", "price": "1299", "originalPrice": "1799"})

	code, body := h.do("GET", "/api/v1/categories", "", nil)
	if code != http.StatusOK || !contains(body, `"slug":"shirts"`) || !contains(body, `"count":2`) || !contains(body, `"onSale":1`) {
		t.Fatalf("categories: %d %s", code, body)
	}
	code, body = h.do("GET", "/api/v1/brands", "", nil)
	if code != http.StatusOK || !contains(body, `"slug":"zara"`) {
		t.Fatalf("brands: %d %s", code, body)
	}
}
