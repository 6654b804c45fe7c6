package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"onsalenow/internal/http/handlers"
)

func TestBlockingSellerHidesProducts(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.admin("sid-a1", "root@shop.test")
	uid := h.seller("sid-s1", "zara@shop.test", "Zara", "sid-a1")
	p1 := h.product("sid-s1", map[string]any{"name": "Linen Shirt", "category": "Shirts", "price": "1499"})
	h.product("sid-s1", map[string]any{"name": "Denim Jacket", "category": "Jackets", "price": "2999"})

	code, body := h.do("POST", "/api/v1/admin/sellers/"+uid+"/status", "sid-a1", map[string]any{"status": "blocked"})
	if code != http.StatusOK {
		t.Fatalf("block: %d %s", code, body)
	}
	var res struct {
		Reconcile struct {
			Checked int `json:"checked"`
			Updated int `json:"updated"`
		} `json:"reconcile"`
	}
	h.decode(body, &res)
	if res.Reconcile.Checked != 2 || res.Reconcile.Updated != 2 {
		t.Fatalf("reconcile result %+v", res.Reconcile)
	}

	if code, _ := h.do("GET", "/api/v1/products/"+p1.ID, "", nil); code != http.StatusNotFound {
		t.Fatalf("blocked product must be hidden, got %d", code)
	}
	code, body = h.do("GET", "/api/v1/products", "", nil)
	if code != http.StatusOK || !contains(body, `"count":0`) {
		t.Fatalf("list after block: %d %s", code, body)
	}

	// Running the job again changes nothing.
	code, body = h.do("POST", "/api/v1/admin/sellers/"+uid+"/reconcile", "sid-a1", nil)
	if code != http.StatusOK {
		t.Fatalf("reconcile: %d %s", code, body)
	}
	var again map[string]any
	_ = json.Unmarshal(body, &again)
	if again["updated"] != float64(0) {
		t.Fatalf("second run updated %v", again["updated"])
	}

	// The blocked seller is signed out of seller routes.
	if code, _ := h.do("GET", "/api/v1/seller/products", "sid-s1", nil); code != http.StatusUnauthorized {
		t.Fatalf("blocked seller session: want 401, got %d", code)
	}

	h.do("POST", "/api/v1/admin/sellers/"+uid+"/status", "sid-a1", map[string]any{"status": "approved"})
	if code, _ := h.do("GET", "/api/v1/products/"+p1.ID, "", nil); code != http.StatusOK {
		t.Fatalf("unblocked product must be visible, got %d", code)
	}
}

func TestAdminSellerStatusLogged(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.admin("sid-a1", "root@shop.test")
	logs := observeLogs(t)
	uid := h.seller("sid-s1", "zara@shop.test", "Zara", "sid-a1")

	entries := logs.FilterMessage("admin.sellers.status").All()
	if len(entries) != 1 {
		t.Fatalf("want one audit entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["kind"] != "audit" || ctx["target"] != uid || ctx["new_status"] != "approved" {
		t.Fatalf("audit fields: %v", ctx)
	}

	if code, _ := h.do("POST", "/api/v1/admin/sellers/"+uid+"/status", "sid-a1", map[string]any{"status": "vip"}); code != http.StatusBadRequest {
		t.Fatalf("invalid status: want 400, got %d", code)
	}
}
