package auth

import (
	"errors"
	"testing"
	"time"
)

func TestNoneModeAllowsEveryone(t *testing.T) {
	v, err := NewVerifier("", "", "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := v.FromHeader("")
	if err != nil || !p.IsOperator() {
		t.Fatalf("principal=%+v err=%v", p, err)
	}
}

func TestTokenMode(t *testing.T) {
	if _, err := NewVerifier("token", "", ""); err == nil {
		t.Fatal("want error without token")
	}
	v, _ := NewVerifier("token", "s3cret", "")
	if _, err := v.FromHeader("Bearer s3cret"); err != nil {
		t.Fatalf("valid token: %v", err)
	}
	if _, err := v.FromHeader("Bearer nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("bad token: %v", err)
	}
	if _, err := v.FromHeader(""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing header: %v", err)
	}
}

func TestHMACMode(t *testing.T) {
	v, err := NewVerifier("hmac", "", "k")
	if err != nil {
		t.Fatal(err)
	}
	v.now = func() time.Time { return time.Unix(1000, 0) }

	tok, _ := SignHS256("k", map[string]any{"sub": "ops", "role": "Operator", "exp": 2000})
	p, err := v.FromHeader("bearer " + tok)
	if err != nil || !p.IsOperator() || p.Subject != "ops" {
		t.Fatalf("principal=%+v err=%v", p, err)
	}

	user, _ := SignHS256("k", map[string]any{"sub": "u"})
	if p, err := v.Verify(user); err != nil || p.IsOperator() {
		t.Fatalf("user principal=%+v err=%v", p, err)
	}

	expired, _ := SignHS256("k", map[string]any{"role": "admin", "exp": 999})
	if _, err := v.Verify(expired); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired: %v", err)
	}
	forged, _ := SignHS256("other", map[string]any{"role": "admin"})
	if _, err := v.Verify(forged); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("forged: %v", err)
	}
	if _, err := v.Verify("a.b"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("malformed: %v", err)
	}
}

func TestUnsupportedMode(t *testing.T) {
	if _, err := NewVerifier("jwks", "", ""); err == nil {
		t.Fatal("want error")
	}
}
