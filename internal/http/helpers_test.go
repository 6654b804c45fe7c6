package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"onsalenow/internal/config"
	"onsalenow/internal/domain"
	"onsalenow/internal/http/handlers"
	applog "onsalenow/internal/log"
	"onsalenow/internal/mail"
	"onsalenow/internal/notify"
	"onsalenow/internal/push"
	"onsalenow/internal/repos"
	"onsalenow/internal/services"
)

const pw = "Secret#123"

type providerCall struct {
	Method string
	Path   string
	Body   map[string]any
}

// provider stands in for the push provider REST API.
type provider struct {
	mu    sync.Mutex
	calls []providerCall
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	p.mu.Lock()
	p.calls = append(p.calls, providerCall{Method: r.Method, Path: r.URL.Path, Body: body})
	n := len(p.calls)
	p.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/notifications" {
		_, _ = io.WriteString(w, `{"id":"n-`+strconv.Itoa(n)+`"}`)
		return
	}
	_, _ = io.WriteString(w, `{}`)
}

func (p *provider) broadcasts() []providerCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []providerCall
	for _, c := range p.calls {
		if c.Path == "/notifications" {
			out = append(out, c)
		}
	}
	return out
}

type nopMail struct{}

func (nopMail) Send(context.Context, mail.Message) error { return nil }

type harness struct {
	t    *testing.T
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
	push *provider
}

func newHarness(t *testing.T, lim handlers.Limits) *harness {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	prov := &provider{}
	srv := httptest.NewServer(prov)
	t.Cleanup(srv.Close)

	gw := repos.NewSQLGateway(db)
	accounts := repos.NewAccountRepo(db)
	profiles := repos.NewProfileRepo(gw)
	products := repos.NewProductRepo(gw)
	orders := repos.NewOrderRepo(gw)

	pc := push.New(config.PushConfig{AppID: "app-1", APIKey: "key", BaseURL: srv.URL, RatePerSec: 1000})
	subs := services.NewSubscriptionService(repos.NewSubscriptionRepo(gw), pc)
	fan := &notify.Fanout{
		Subs:      subs,
		Push:      pc,
		Dedup:     notify.StoreDedup{Markers: repos.NewMarkerRepo(gw, "notifications")},
		PublicURL: "https://shop.test",
	}
	invites := services.NewInviteService("test-secret", time.Hour, repos.NewMarkerRepo(gw, "adminInvites"))
	deps := &handlers.Deps{
		Auth:      services.NewAuthService(accounts, profiles, invites, 4),
		Invites:   invites,
		Catalog:   services.NewCatalogService(products, notify.Inline{Fanout: fan}, nil),
		Subs:      subs,
		Orders:    services.NewOrderService(orders, products, nopMail{}),
		Sellers:   services.NewSellerService(profiles, products, accounts, orders, nopMail{}),
		PublicURL: "https://shop.test",
	}
	return &harness{
		t:    t,
		app:  handlers.NewApp(deps, "../../web/templates", lim),
		db:   db,
		deps: deps,
		push: prov,
	}
}

// do sends a JSON request with the given sid cookie and returns status and body.
func (h *harness) do(method, path, sid string, body any) (int, []byte) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := h.app.Test(req, 5000)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (h *harness) decode(raw []byte, v any) {
	h.t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		h.t.Fatalf("decode %s: %v", string(raw), err)
	}
}

func (h *harness) buyer(sid, email string) string {
	h.t.Helper()
	code, body := h.do("POST", "/api/v1/auth/buyers", sid, map[string]any{
		"email": email, "password": pw, "name": "Asha", "address": "12 MG Road",
	})
	if code != http.StatusCreated {
		h.t.Fatalf("register buyer: %d %s", code, body)
	}
	var s struct{ UID string }
	h.decode(body, &s)
	return s.UID
}

func (h *harness) admin(sid, email string) string {
	h.t.Helper()
	token, _, err := h.deps.Invites.Mint(email, 0)
	if err != nil {
		h.t.Fatal(err)
	}
	code, body := h.do("POST", "/api/v1/auth/admins", sid, map[string]any{
		"email": email, "password": pw, "name": "Root", "invite": token,
	})
	if code != http.StatusCreated {
		h.t.Fatalf("register admin: %d %s", code, body)
	}
	var s struct{ UID string }
	h.decode(body, &s)
	return s.UID
}

// seller registers a seller and approves it through the admin API.
func (h *harness) seller(sid, email, brand, adminSID string) string {
	h.t.Helper()
	code, body := h.do("POST", "/api/v1/auth/sellers", sid, map[string]any{
		"email": email, "password": pw, "brandName": brand, "ownerName": "Ravi",
	})
	if code != http.StatusCreated {
		h.t.Fatalf("register seller: %d %s", code, body)
	}
	var s struct{ UID string }
	h.decode(body, &s)
	code, body = h.do("POST", "/api/v1/admin/sellers/"+s.UID+"/status", adminSID, map[string]any{"status": domain.SellerApproved})
	if code != http.StatusOK {
		h.t.Fatalf("approve seller: %d %s", code, body)
	}
	return s.UID
}

func (h *harness) product(sellerSID string, in map[string]any) domain.Product {
	h.t.Helper()
	code, body := h.do("POST", "/api/v1/seller/products", sellerSID, in)
	if code != http.StatusCreated {
		h.t.Fatalf("create product: %d %s", code, body)
	}
	var p domain.Product
	h.decode(body, &p)
	return p
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(applog.SetLogger(zap.New(core)))
	return logs
}

func hasField(logs *observer.ObservedLogs, msg, key string) bool {
	for _, e := range logs.FilterMessage(msg).All() {
		if _, ok := e.ContextMap()[key]; ok {
			return true
		}
	}
	return false
}

func contains(body []byte, s string) bool { return strings.Contains(string(body), s) }
