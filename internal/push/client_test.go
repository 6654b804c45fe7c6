package push

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"onsalenow/internal/config"
)

type captured struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

func fakeProvider(t *testing.T, status int, reply string) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		seen = append(seen, captured{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), seen...)
	}
}

func TestBroadcastSendsTagFilter(t *testing.T) {
	srv, calls := fakeProvider(t, http.StatusOK, `{"id":"n-123"}`)
	c := New(config.PushConfig{AppID: "app-1", APIKey: "secret", BaseURL: srv.URL, RatePerSec: 100})

	id, err := c.Broadcast(context.Background(), Notification{
		Headings:       map[string]string{"en": "New from Acme"},
		Contents:       map[string]string{"en": "Tee just landed"},
		Filters:        []Filter{TagFilter("brand_acme")},
		URL:            "https://shop.test/product/p1",
		IdempotencyKey: "k-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "n-123" {
		t.Fatalf("id = %q", id)
	}
	got := calls()
	if len(got) != 1 || got[0].Method != http.MethodPost || got[0].Path != "/notifications" {
		t.Fatalf("calls = %+v", got)
	}
	if got[0].Auth != "Bearer secret" || got[0].Body["app_id"] != "app-1" || got[0].Body["idempotency_key"] != "k-1" {
		t.Fatalf("request = %+v", got[0])
	}
	filters := got[0].Body["filters"].([]any)
	f := filters[0].(map[string]any)
	if f["field"] != "tag" || f["key"] != "brand_acme" || f["relation"] != "=" || f["value"] != "true" {
		t.Fatalf("filter = %v", f)
	}
}

func TestTagsPatchUserProfile(t *testing.T) {
	srv, calls := fakeProvider(t, http.StatusOK, `{}`)
	c := New(config.PushConfig{AppID: "app-1", APIKey: "k", BaseURL: srv.URL, RatePerSec: 100})
	ctx := context.Background()

	if err := c.AddTags(ctx, "u1", map[string]string{"brand_acme": "true"}); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveTags(ctx, "u1", "brand_acme"); err != nil {
		t.Fatal(err)
	}
	got := calls()
	if len(got) != 2 {
		t.Fatalf("want 2 calls, got %d", len(got))
	}
	for _, call := range got {
		if call.Method != http.MethodPatch || call.Path != "/apps/app-1/users/by/external_id/u1" {
			t.Fatalf("call = %+v", call)
		}
	}
	tags := got[1].Body["properties"].(map[string]any)["tags"].(map[string]any)
	if v, ok := tags["brand_acme"]; !ok || v != "" {
		t.Fatalf("removal should send empty value, got %v", tags)
	}
}

func TestProviderErrorSurfaces(t *testing.T) {
	srv, _ := fakeProvider(t, http.StatusBadRequest, `{"errors":["bad filter"]}`)
	c := New(config.PushConfig{AppID: "app-1", BaseURL: srv.URL, RatePerSec: 100})

	_, err := c.Broadcast(context.Background(), Notification{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("want APIError 400, got %v", err)
	}
}

func TestErrorsWithoutIDAreRejected(t *testing.T) {
	srv, _ := fakeProvider(t, http.StatusOK, `{"id":"","errors":["All included players are not subscribed"]}`)
	c := New(config.PushConfig{AppID: "app-1", BaseURL: srv.URL, RatePerSec: 100})

	if _, err := c.Broadcast(context.Background(), Notification{}); !errors.Is(err, ErrRejected) {
		t.Fatalf("want ErrRejected, got %v", err)
	}

	srv, _ = fakeProvider(t, http.StatusOK, `{"id":"n-9","errors":[]}`)
	c = New(config.PushConfig{AppID: "app-1", BaseURL: srv.URL, RatePerSec: 100})
	id, err := c.Broadcast(context.Background(), Notification{})
	if err != nil || id != "n-9" {
		t.Fatalf("id = %q, err = %v", id, err)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := New(config.PushConfig{BaseURL: "http://127.0.0.1:1"})
	if c.Enabled() {
		t.Fatal("client without app id should be disabled")
	}
	if _, err := c.Broadcast(context.Background(), Notification{}); err != nil {
		t.Fatal(err)
	}
	if err := c.AddTags(context.Background(), "u1", map[string]string{"a": "true"}); err != nil {
		t.Fatal(err)
	}
}
