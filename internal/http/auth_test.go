package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"onsalenow/internal/http/handlers"
)

func TestPasswordsAreStoredHashed(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.buyer("sid-b1", "asha@shop.test")

	var hashes []string
	if err := h.db.Select(&hashes, `SELECT password_hash FROM accounts`); err != nil {
		t.Fatalf("select hashes: %v", err)
	}
	if len(hashes) != 1 {
		t.Fatalf("want 1 account, got %d", len(hashes))
	}
	for _, hash := range hashes {
		if strings.Contains(hash, pw) {
			t.Fatal("hash contains plaintext password")
		}
		if !strings.HasPrefix(hash, "$2") {
			t.Fatalf("unexpected hash format: %s", hash)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)); err != nil {
			t.Fatalf("hash does not validate known password: %v", err)
		}
	}
}

func TestLoginSuccessFailAndThrottle(t *testing.T) {
	h := newHarness(t, handlers.Limits{Login: 3, LoginEvery: time.Minute})
	h.buyer("sid-b1", "asha@shop.test")

	code, _ := h.do("POST", "/api/v1/auth/login", "sid-x", map[string]any{"email": "asha@shop.test", "password": "wrongpass!"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad creds, got %d", code)
	}

	code, body := h.do("POST", "/api/v1/auth/login", "sid-x", map[string]any{"email": "asha@shop.test", "password": pw})
	if code != http.StatusOK {
		t.Fatalf("expected 200 on success, got %d %s", code, body)
	}
	if !contains(body, `"kind":"buyer"`) {
		t.Fatalf("session kind missing: %s", body)
	}

	// The account has no seller profile.
	code, _ = h.do("POST", "/api/v1/auth/login", "sid-y", map[string]any{"email": "asha@shop.test", "password": pw, "role": "seller"})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing role profile, got %d", code)
	}

	code, _ = h.do("POST", "/api/v1/auth/login", "sid-x", map[string]any{"email": "asha@shop.test", "password": "wrongpass!"})
	if code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after throttle, got %d", code)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.buyer("sid-b1", "asha@shop.test")

	if code, _ := h.do("GET", "/api/v1/me", "sid-b1", nil); code != http.StatusOK {
		t.Fatalf("me before logout: %d", code)
	}
	if code, _ := h.do("POST", "/api/v1/auth/logout", "sid-b1", nil); code != http.StatusNoContent {
		t.Fatalf("logout: %d", code)
	}
	if code, _ := h.do("GET", "/api/v1/me", "sid-b1", nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout: %d", code)
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	h.buyer("sid-b1", "asha@shop.test")
	code, _ := h.do("POST", "/api/v1/auth/buyers", "sid-b2", map[string]any{
		"email": "ASHA@shop.test", "password": pw, "name": "Other",
	})
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
}

func TestAdminInviteIsSingleUse(t *testing.T) {
	h := newHarness(t, handlers.Limits{})
	token, _, err := h.deps.Invites.Mint("root@shop.test", 0)
	if err != nil {
		t.Fatal(err)
	}
	body := map[string]any{"email": "root@shop.test", "password": pw, "name": "Root", "invite": token}
	if code, raw := h.do("POST", "/api/v1/auth/admins", "sid-a1", body); code != http.StatusCreated {
		t.Fatalf("first redeem: %d %s", code, raw)
	}
	if code, _ := h.do("POST", "/api/v1/auth/admins", "sid-a2", body); code == http.StatusCreated {
		t.Fatal("second redeem must fail")
	}

	forged := map[string]any{"email": "eve@shop.test", "password": pw, "name": "Eve", "invite": token}
	if code, _ := h.do("POST", "/api/v1/auth/admins", "sid-a3", forged); code != http.StatusForbidden {
		t.Fatalf("invite for another email: %d", code)
	}
}

func TestAuditEntriesCarryResponseStatus(t *testing.T) {
	logs := observeLogs(t)
	h := newHarness(t, handlers.Limits{})
	h.admin("sid-a1", "root@shop.test")
	h.seller("sid-s1", "zara@shop.test", "Zara", "sid-a1")
	h.buyer("sid-b1", "asha@shop.test")
	p := h.product("sid-s1", map[string]any{"name": "Tee", "category": "Shirts", "price": "999"})
	if code, _ := h.do("DELETE", "/api/v1/seller/products/"+p.ID, "sid-s1", nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}

	want := map[string]int64{
		"auth.register.success":  http.StatusCreated,
		"seller.products.create": http.StatusCreated,
		"products.delete":        http.StatusNoContent,
	}
	for msg, status := range want {
		entries := logs.FilterMessage(msg).All()
		if len(entries) == 0 {
			t.Fatalf("no %s entry", msg)
		}
		for _, e := range entries {
			if got := e.ContextMap()["status"]; got != status {
				t.Fatalf("%s logged status %v, want %d", msg, got, status)
			}
		}
	}
}
