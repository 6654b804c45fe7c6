package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"onsalenow/internal/domain"
	"onsalenow/internal/mail"
	"onsalenow/internal/repos"
	"onsalenow/internal/services"
)

const pw = "Secret#123"

type fakeTags struct {
	mu   sync.Mutex
	tags map[string]map[string]bool
	fail error
}

func newFakeTags() *fakeTags { return &fakeTags{tags: map[string]map[string]bool{}} }

func (f *fakeTags) AddTags(_ context.Context, uid string, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if f.tags[uid] == nil {
		f.tags[uid] = map[string]bool{}
	}
	for k := range tags {
		f.tags[uid][k] = true
	}
	return nil
}

func (f *fakeTags) RemoveTags(_ context.Context, uid string, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, k := range keys {
		delete(f.tags[uid], k)
	}
	return nil
}

func (f *fakeTags) has(uid, tag string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tags[uid][tag]
}

type fakeMail struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (f *fakeMail) Send(_ context.Context, m mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

type dispatchLog struct{ products []domain.Product }

func (d *dispatchLog) ProductCreated(_ context.Context, p domain.Product) error {
	d.products = append(d.products, p)
	return nil
}

// flakyGateway fails Update for paths listed in failOnce, once each.
type flakyGateway struct {
	repos.Gateway
	mu       sync.Mutex
	failOnce map[string]bool
}

func (g *flakyGateway) Update(ctx context.Context, path string, fields map[string]any) error {
	g.mu.Lock()
	fail := g.failOnce[path]
	delete(g.failOnce, path)
	g.mu.Unlock()
	if fail {
		return errors.New("store timeout")
	}
	return g.Gateway.Update(ctx, path, fields)
}

type env struct {
	gw       *flakyGateway
	accounts *repos.AccountRepo
	profiles *repos.ProfileRepo
	products *repos.ProductRepo
	orders   *repos.OrderRepo
	subs     *repos.SubscriptionRepo

	auth     *services.AuthService
	invites  *services.InviteService
	catalog  *services.CatalogService
	sellers  *services.SellerService
	ordersvc *services.OrderService
	subsvc   *services.SubscriptionService

	tags     *fakeTags
	mail     *fakeMail
	dispatch *dispatchLog
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		gw:       &flakyGateway{Gateway: repos.NewSQLGateway(db), failOnce: map[string]bool{}},
		accounts: repos.NewAccountRepo(db),
		tags:     newFakeTags(),
		mail:     &fakeMail{},
		dispatch: &dispatchLog{},
	}
	e.profiles = repos.NewProfileRepo(e.gw)
	e.products = repos.NewProductRepo(e.gw)
	e.orders = repos.NewOrderRepo(e.gw)
	e.subs = repos.NewSubscriptionRepo(e.gw)

	e.invites = services.NewInviteService("test-secret", time.Hour, repos.NewMarkerRepo(e.gw, "adminInvites"))
	e.auth = services.NewAuthService(e.accounts, e.profiles, e.invites, 4)
	e.catalog = services.NewCatalogService(e.products, e.dispatch, nil)
	e.sellers = services.NewSellerService(e.profiles, e.products, e.accounts, e.orders, e.mail)
	e.ordersvc = services.NewOrderService(e.orders, e.products, e.mail)
	e.subsvc = services.NewSubscriptionService(e.subs, e.tags)
	return e
}

func (e *env) buyer(t *testing.T, sid, email string) domain.Session {
	t.Helper()
	s, err := e.auth.RegisterBuyer(context.Background(), sid, email, pw, services.BuyerProfile{Name: "Asha", Address: "12 MG Road"})
	if err != nil {
		t.Fatalf("register buyer: %v", err)
	}
	return s
}

// approvedSeller registers a seller and approves it through the admin path.
func (e *env) approvedSeller(t *testing.T, sid, email, brand string) domain.Session {
	t.Helper()
	ctx := context.Background()
	s, err := e.auth.RegisterSeller(ctx, sid, email, pw, services.SellerProfile{BrandName: brand, OwnerName: "Ravi"})
	if err != nil {
		t.Fatalf("register seller: %v", err)
	}
	if _, _, err := e.sellers.SetStatus(ctx, s.UID, domain.SellerApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	s, err = e.auth.Current(ctx, sid)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (e *env) product(t *testing.T, seller domain.Session, name, category, price, original string) *domain.Product {
	t.Helper()
	p, err := e.catalog.Create(context.Background(), seller, services.ProductInput{
		Name: name, Brand: seller.Seller.BrandName, Category: category,
		Price: domain.Amount(price), OriginalPrice: domain.Amount(original), Stock: 5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}
