package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	at, err := NewAccessToken("s3cret", 42, "admin", 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	cl, err := ParseAccessToken("s3cret", at.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if cl.UserID != 42 || cl.Role != "admin" || cl.Exp.Unix() != at.Exp.Unix() {
		t.Fatalf("claims = %+v, exp %v", cl, at.Exp)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	good, _ := NewAccessToken("s3cret", 1, "user", 15)
	expired, _ := NewAccessToken("s3cret", 1, "user", -5)
	cases := map[string]struct{ secret, raw string }{
		"wrong key": {"other", good.Token},
		"expired":   {"s3cret", expired.Token},
		"garbage":   {"s3cret", "not.a.token"},
		"empty":     {"s3cret", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseAccessToken(tc.secret, tc.raw); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRefreshToken(t *testing.T) {
	a, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	b, _ := NewRefreshToken(7)
	if len(a.Raw) != 96 || a.Raw == b.Raw {
		t.Fatalf("raw tokens %q %q", a.Raw, b.Raw)
	}
	if HashRefreshRaw(a.Raw) != HashRefreshRaw(a.Raw) || len(HashRefreshRaw(a.Raw)) != 64 {
		t.Fatal("hash must be stable hex sha256")
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter22", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(h, "hunter22") || VerifyPassword(h, "hunter23") {
		t.Fatal("VerifyPassword mismatch")
	}
}

func TestPasswordGuards(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("x", 73), 4); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("long password err = %v", err)
	}
	if VerifyPassword("", "") {
		t.Fatal("empty hash must never match")
	}
}
