package notify_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"onsalenow/internal/config"
	"onsalenow/internal/domain"
	"onsalenow/internal/notify"
	"onsalenow/internal/push"
	"onsalenow/internal/repos"
)

type subsIndex map[string]bool

func (s subsIndex) HasActiveSubscribers(_ context.Context, kind domain.TopicKind, slug string) (bool, error) {
	return s[kind.Tag(slug)], nil
}

type fakeSender struct {
	sent []push.Notification
	fail error
}

func (f *fakeSender) Broadcast(_ context.Context, n push.Notification) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, n)
	return "n-" + n.IdempotencyKey, nil
}

func storeDedup(t *testing.T) notify.StoreDedup {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return notify.StoreDedup{Markers: repos.NewMarkerRepo(repos.NewSQLGateway(db), "notifications")}
}

func product() domain.Product {
	return domain.Product{
		ID: "p1", Name: "Linen Shirt", Brand: "Blue Tokai", Category: "Shirts",
		Price: "₹1,499", DiscountPercent: "25", Image: "https://cdn.example.com/p1.jpg",
	}
}

func TestProductCreatedTargetsTagsOncePerKind(t *testing.T) {
	sender := &fakeSender{}
	f := &notify.Fanout{
		Subs:      subsIndex{"brand_blue_tokai": true, "category_shirts": true},
		Push:      sender,
		Dedup:     storeDedup(t),
		PublicURL: "https://onsale.example.com/",
	}

	out, err := f.ProductCreated(context.Background(), product())
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0].Result != notify.OutcomeSent || out[1].Result != notify.OutcomeSent {
		t.Fatalf("outcomes = %+v", out)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(sender.sent))
	}
	brand := sender.sent[0]
	if brand.Filters[0] != push.TagFilter("brand_blue_tokai") {
		t.Fatalf("filter = %+v", brand.Filters)
	}
	if brand.URL != "https://onsale.example.com/product/p1" {
		t.Fatalf("url = %q", brand.URL)
	}
	if brand.BigPicture != "https://cdn.example.com/p1.jpg" {
		t.Fatalf("big picture = %q", brand.BigPicture)
	}
	if brand.IdempotencyKey != notify.NotificationID("p1", domain.TopicBrand) {
		t.Fatalf("idempotency key = %q", brand.IdempotencyKey)
	}
	if brand.Data["productId"] != "p1" || brand.Data["kind"] != "brand" {
		t.Fatalf("data = %+v", brand.Data)
	}

	// A redelivered trigger must not reach the provider again.
	out, err = f.ProductCreated(context.Background(), product())
	if err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("second run sent again: %d", len(sender.sent))
	}
	for _, o := range out {
		if o.Result != notify.OutcomeDeduped {
			t.Fatalf("second run outcome = %+v", o)
		}
	}
}

func TestProductCreatedWithoutSubscribersSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	f := &notify.Fanout{Subs: subsIndex{"brand_other": true}, Push: sender, Dedup: storeDedup(t)}
	out, err := f.ProductCreated(context.Background(), product())
	if err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("sent %d", len(sender.sent))
	}
	for _, o := range out {
		if o.Result != notify.OutcomeNoSubscribers {
			t.Fatalf("outcome = %+v", o)
		}
	}
}

func TestProductCreatedSkipsBlockedProduct(t *testing.T) {
	sender := &fakeSender{}
	f := &notify.Fanout{Subs: subsIndex{"brand_blue_tokai": true}, Push: sender, Dedup: storeDedup(t)}
	p := product()
	p.IsSellerBlocked = true
	if _, err := f.ProductCreated(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("blocked product must not notify")
	}
}

func TestFailedSendReleasesClaim(t *testing.T) {
	sender := &fakeSender{fail: errors.New("503")}
	dedup := storeDedup(t)
	f := &notify.Fanout{Subs: subsIndex{"brand_blue_tokai": true}, Push: sender, Dedup: dedup}

	if _, err := f.ProductCreated(context.Background(), product()); err == nil {
		t.Fatal("want joined send error")
	}
	sender.fail = nil
	out, err := f.ProductCreated(context.Background(), product())
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Result != notify.OutcomeSent || len(sender.sent) != 1 {
		t.Fatalf("retry after failure: %+v, sent %d", out, len(sender.sent))
	}
}

func TestProviderRejectionReleasesClaim(t *testing.T) {
	var rejecting atomic.Bool
	rejecting.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rejecting.Load() {
			_, _ = io.WriteString(w, `{"id":"","errors":["All included players are not subscribed"]}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"n-1"}`)
	}))
	t.Cleanup(srv.Close)

	client := push.New(config.PushConfig{AppID: "app-1", APIKey: "k", BaseURL: srv.URL, RatePerSec: 1000})
	f := &notify.Fanout{Subs: subsIndex{"brand_blue_tokai": true}, Push: client, Dedup: storeDedup(t)}

	out, err := f.ProductCreated(context.Background(), product())
	if !errors.Is(err, push.ErrRejected) || out[0].Result != notify.OutcomeFailed {
		t.Fatalf("rejected send: %+v, %v", out, err)
	}
	rejecting.Store(false)
	out, err = f.ProductCreated(context.Background(), product())
	if err != nil || out[0].Result != notify.OutcomeSent || out[0].ProviderID != "n-1" {
		t.Fatalf("retry after rejection: %+v, %v", out, err)
	}
}

func TestNotificationIDIsDeterministic(t *testing.T) {
	a := notify.NotificationID("p1", domain.TopicBrand)
	if a != notify.NotificationID("p1", domain.TopicBrand) {
		t.Fatal("id changed between calls")
	}
	if a == notify.NotificationID("p1", domain.TopicCategory) || a == notify.NotificationID("p2", domain.TopicBrand) {
		t.Fatal("ids must differ per product and kind")
	}
}

func TestInlineDispatcher(t *testing.T) {
	sender := &fakeSender{}
	d := notify.Inline{Fanout: &notify.Fanout{Subs: subsIndex{"category_shirts": true}, Push: sender, Dedup: storeDedup(t)}}
	if err := d.ProductCreated(context.Background(), product()); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 || sender.sent[0].Filters[0].Key != "category_shirts" {
		t.Fatalf("sent = %+v", sender.sent)
	}
}
