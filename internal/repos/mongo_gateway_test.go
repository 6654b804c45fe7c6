package repos

import (
	"encoding/json"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"onsalenow/internal/domain"
)

func asJSONMap(t *testing.T, doc bson.M) map[string]any {
	t.Helper()
	raw, err := docJSON(doc)
	if err != nil {
		t.Fatalf("docJSON: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func TestMongoDocRoundTrip(t *testing.T) {
	in := domain.Product{
		ID: "p1", Name: "Tee", Brand: "Acme", Category: "Shirts",
		Price: "₹1,499.50", DiscountPercent: "25", Stock: 5, Sizes: []string{"S", "M"},
		IsSellerBlocked: true,
	}
	doc, err := toDoc("p1", in)
	if err != nil {
		t.Fatal(err)
	}
	if doc["_id"] != "p1" {
		t.Fatalf("_id = %v", doc["_id"])
	}

	raw, err := docJSON(doc)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["_id"]; ok {
		t.Fatal("docJSON must drop _id")
	}
	var out domain.Product
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip:\n in  %+v\n out %+v", in, out)
	}
}

func TestMongoSetFieldsMatchJSONShapes(t *testing.T) {
	set, err := setFields(map[string]any{
		"stock":        3,
		"sizes":        []string{"S", "M"},
		"price":        domain.Amount("999"),
		"sellerIds.s2": true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := set["sellerIds.s2"].(bool); !ok || !v {
		t.Fatalf("dotted bool = %#v", set["sellerIds.s2"])
	}
	if _, ok := set["stock"].(int32); !ok {
		t.Fatalf("stock stored as %T", set["stock"])
	}

	got := asJSONMap(t, set)
	want := map[string]any{"stock": 3.0, "sizes": []any{"S", "M"}, "price": "999", "sellerIds.s2": true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("set = %v, want %v", got, want)
	}

	if _, err := setFields(map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatal("want encode error for unsupported value")
	}
}

func TestMongoFieldFilterShapes(t *testing.T) {
	f := fieldFilter("sellerIds.s1", true)
	if v, ok := f["sellerIds.s1"].(bool); !ok || !v || len(f) != 1 {
		t.Fatalf("filter = %#v", f)
	}
	f = fieldFilter("status", "approved")
	if f["status"] != "approved" {
		t.Fatalf("filter = %#v", f)
	}
}
