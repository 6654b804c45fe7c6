package validate

import (
	"errors"
	"testing"
)

func TestEmail(t *testing.T) {
	if got, ok := Email("  Ann@Shop.Test "); !ok || got != "ann@shop.test" {
		t.Fatalf("Email = %q %v", got, ok)
	}
	for _, bad := range []string{"", "nope", "a@b", "a b@c.de"} {
		if _, ok := Email(bad); ok {
			t.Errorf("Email(%q) accepted", bad)
		}
	}
}

func TestPassword(t *testing.T) {
	if !Password("Passw0rd!") {
		t.Fatal("strong password rejected")
	}
	for _, bad := range []string{"short1!", "alllowercase1!", "NoDigits!!", "NoSymbol11"} {
		if Password(bad) {
			t.Errorf("Password(%q) accepted", bad)
		}
	}
}

func TestErrors(t *testing.T) {
	ve := Errors{}
	if ve.Err() != nil {
		t.Fatal("empty Errors must be nil error")
	}
	ve.Add("name", "required")
	ve.Add("name", "second message ignored")
	ve.Add("email", "invalid")
	var got Errors
	if !errors.As(ve.Err(), &got) || got["name"] != "required" {
		t.Fatalf("errors.As: %v", got)
	}
	if ve.Error() != "validation failed: email: invalid; name: required" {
		t.Fatalf("Error() = %q", ve.Error())
	}
}

func TestQClamps(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "x"
	}
	if len(Q(long)) != 50 {
		t.Fatal("Q did not clamp")
	}
	if _, ok := ID("abc-1_2"); !ok {
		t.Fatal("ID rejected")
	}
	if _, ok := ID("../etc"); ok {
		t.Fatal("ID accepted traversal")
	}
}
